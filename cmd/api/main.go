package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mercanto-labs/mercanto-backend/api/routes"
	"github.com/mercanto-labs/mercanto-backend/internal/businesses"
	"github.com/mercanto-labs/mercanto-backend/internal/catalog"
	"github.com/mercanto-labs/mercanto-backend/internal/orders"
	"github.com/mercanto-labs/mercanto-backend/internal/payments"
	"github.com/mercanto-labs/mercanto-backend/internal/payments/providers"
	"github.com/mercanto-labs/mercanto-backend/internal/stock"
	"github.com/mercanto-labs/mercanto-backend/internal/wallet"
	"github.com/mercanto-labs/mercanto-backend/pkg/config"
	"github.com/mercanto-labs/mercanto-backend/pkg/db"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
	"github.com/mercanto-labs/mercanto-backend/pkg/metrics"
	"github.com/mercanto-labs/mercanto-backend/pkg/migrate"
	"github.com/mercanto-labs/mercanto-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(promRegistry)

	gormDB := dbClient.DB()

	businessSvc, err := businesses.NewService(businesses.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create businesses service", err)
		os.Exit(1)
	}
	catalogSvc, err := catalog.NewService(catalog.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}
	stockSvc, err := stock.NewService(stock.NewRepository(gormDB), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(orders.NewRepository(gormDB), stockSvc, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	registry, err := buildProviderRegistry(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to build provider registry", err)
		os.Exit(1)
	}

	gateway, err := payments.NewService(
		payments.NewRepository(gormDB),
		orders.NewRepository(gormDB),
		ordersSvc,
		businessSvc,
		registry,
		dbClient,
		paymentMetrics,
		logg,
		payments.Config{
			PlatformBusinessID: cfg.Platform.BusinessID,
			IntentTimeout:      cfg.Payments.IntentTimeout,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	walletSvc, err := wallet.NewService(wallet.NewRepository(gormDB), ordersSvc, gateway, dbClient, logg, wallet.Config{
		PlatformBusinessID: cfg.Platform.BusinessID,
		DefaultCurrency:    cfg.Platform.DefaultCurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}
	gateway.BindWalletCreditor(walletSvc)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient, promRegistry,
			businessSvc, catalogSvc, stockSvc, ordersSvc, gateway, walletSvc,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildProviderRegistry wires every provider whose credentials are present.
// The manual provider needs none and is always available.
func buildProviderRegistry(cfg *config.Config) (*payments.Registry, error) {
	list := []payments.Provider{providers.NewManual()}

	if cfg.Payments.Card.APIKey != "" {
		card, err := providers.NewCard(cfg.Payments.Card)
		if err != nil {
			return nil, err
		}
		list = append(list, card)
	}
	if cfg.Payments.MobileMoney.APIKey != "" {
		momo, err := providers.NewMobileMoney(cfg.Payments.MobileMoney)
		if err != nil {
			return nil, err
		}
		list = append(list, momo)
	}

	return payments.NewRegistry(list...)
}
