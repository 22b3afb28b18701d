package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mercanto-labs/mercanto-backend/api/controllers"
	webhookcontrollers "github.com/mercanto-labs/mercanto-backend/api/controllers/webhooks"
	"github.com/mercanto-labs/mercanto-backend/api/middleware"
	"github.com/mercanto-labs/mercanto-backend/internal/businesses"
	"github.com/mercanto-labs/mercanto-backend/internal/catalog"
	"github.com/mercanto-labs/mercanto-backend/internal/orders"
	"github.com/mercanto-labs/mercanto-backend/internal/payments"
	"github.com/mercanto-labs/mercanto-backend/internal/stock"
	"github.com/mercanto-labs/mercanto-backend/internal/wallet"
	"github.com/mercanto-labs/mercanto-backend/pkg/config"
	"github.com/mercanto-labs/mercanto-backend/pkg/db"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
	"github.com/mercanto-labs/mercanto-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	businessSvc businesses.Service,
	catalogSvc catalog.Service,
	stockSvc stock.Service,
	ordersSvc orders.Service,
	gateway payments.Service,
	walletSvc wallet.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	// Provider callbacks authenticate with payload signatures, not JWTs.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/{provider}", webhookcontrollers.ProviderWebhook(gateway, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, businessSvc, logg))
			r.Patch("/{orderId}/status", controllers.UpdateOrderStatus(ordersSvc, businessSvc, logg))
			r.Post("/{orderId}/pay", controllers.PayOrder(gateway, logg))
			r.Post("/{orderId}/confirm-manual-payment", controllers.ConfirmManualPayment(gateway, logg))
			r.Post("/{orderId}/refund", controllers.RefundOrder(gateway, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/variants/{variantId}/adjust", controllers.AdjustVariantStock(stockSvc, catalogSvc, businessSvc, logg))
			r.Post("/variants/{variantId}/batches", controllers.AddBatch(stockSvc, catalogSvc, businessSvc, logg))
			r.Get("/businesses/{businessId}/expiring-soon", controllers.ExpiringSoon(stockSvc, businessSvc, logg))
			r.Post("/businesses/{businessId}/record-expired-losses", controllers.RecordExpiredLosses(stockSvc, businessSvc, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletProfile(walletSvc, logg))
			r.Get("/transactions", controllers.WalletTransactions(walletSvc, logg))
			r.Post("/deposit", controllers.WalletDeposit(walletSvc, logg))
			r.Post("/withdrawal", controllers.WalletWithdrawal(walletSvc, logg))
			r.Post("/transfer", controllers.WalletTransfer(walletSvc, logg))
		})
	})

	return r
}
