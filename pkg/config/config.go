package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Platform     PlatformConfig
	Payments     PaymentsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MERCANTO_APP_ENV" required:"true"`
	Port         string `envconfig:"MERCANTO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MERCANTO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERCANTO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MERCANTO_DB_DSN"`
	Driver string `envconfig:"MERCANTO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MERCANTO_DB_HOST"`
	Port     int    `envconfig:"MERCANTO_DB_PORT" default:"5432"`
	User     string `envconfig:"MERCANTO_DB_USER"`
	Password string `envconfig:"MERCANTO_DB_PASSWORD"`
	Name     string `envconfig:"MERCANTO_DB_NAME"`
	SSLMode  string `envconfig:"MERCANTO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCANTO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCANTO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCANTO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCANTO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCANTO_REDIS_URL"`
	Address      string        `envconfig:"MERCANTO_REDIS_ADDR"`
	Password     string        `envconfig:"MERCANTO_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCANTO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCANTO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERCANTO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERCANTO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCANTO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERCANTO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MERCANTO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MERCANTO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MERCANTO_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERCANTO_AUTO_MIGRATE" default:"false"`
}

// PlatformConfig identifies platform-owned records used by internal flows,
// such as the synthetic orders backing wallet deposits.
type PlatformConfig struct {
	BusinessID      uuid.UUID `envconfig:"MERCANTO_PLATFORM_BUSINESS_ID" required:"true"`
	DefaultCurrency string    `envconfig:"MERCANTO_PLATFORM_CURRENCY" default:"USD"`
}

// PaymentsConfig carries per-provider credentials. Secrets are injected here
// and passed to provider constructors; business logic never reads the
// environment directly.
type PaymentsConfig struct {
	IntentTimeout time.Duration `envconfig:"MERCANTO_PAYMENTS_INTENT_TIMEOUT" default:"15s"`

	Card        CardProviderConfig
	MobileMoney MobileMoneyProviderConfig
}

type CardProviderConfig struct {
	APIKey        string `envconfig:"MERCANTO_CARD_API_KEY"`
	WebhookSecret string `envconfig:"MERCANTO_CARD_WEBHOOK_SECRET"`
	CheckoutURL   string `envconfig:"MERCANTO_CARD_CHECKOUT_URL"`
}

type MobileMoneyProviderConfig struct {
	APIKey        string `envconfig:"MERCANTO_MOMO_API_KEY"`
	WebhookSecret string `envconfig:"MERCANTO_MOMO_WEBHOOK_SECRET"`
	CheckoutURL   string `envconfig:"MERCANTO_MOMO_CHECKOUT_URL"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for envVar, value := range map[string]string{
		"MERCANTO_DB_HOST": db.Host,
		"MERCANTO_DB_USER": db.User,
		"MERCANTO_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, envVar)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either MERCANTO_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
