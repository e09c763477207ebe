package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Frontend     FrontendConfig
	Billing      BillingConfig
	Cron         CronConfig
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
	Env          string   `envconfig:"CRM_APP_ENV" required:"true"`
	Port         string   `envconfig:"CRM_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"CRM_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CRM_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"CRM_CORS_ORIGINS" default:"http://localhost:8080,http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CRM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CRM_DB_DSN"`
	Driver string `envconfig:"CRM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRM_DB_HOST"`
	LegacyPort     int    `envconfig:"CRM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRM_DB_USER"`
	LegacyPassword string `envconfig:"CRM_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRM_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the local sqlite driver was requested.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"CRM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRM_REDIS_ADDR"`
	Password     string        `envconfig:"CRM_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CRM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CRM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CRM_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CRM_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey           string        `envconfig:"CRM_STRIPE_API_KEY"`
	Secret           string        `envconfig:"CRM_STRIPE_SECRET"`
	PublishableKey   string        `envconfig:"CRM_STRIPE_PUB_KEY"`
	Env              string        `envconfig:"CRM_STRIPE_ENV" default:"test"`
	SmallTeamPriceID string        `envconfig:"CRM_STRIPE_PRICE_ID_SMALL_TEAM"`
	BigTeamPriceID   string        `envconfig:"CRM_STRIPE_PRICE_ID_BIG_TEAM"`
	Timeout          time.Duration `envconfig:"CRM_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type FrontendConfig struct {
	SuccessURL string `envconfig:"CRM_FRONTEND_SUCCESS_URL" default:"http://localhost:8080/dashboard/team/plans/thankyou"`
	CancelURL  string `envconfig:"CRM_FRONTEND_CANCEL_URL" default:"http://localhost:8080/dashboard/team/plans"`
}

type BillingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"CRM_BILLING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	PlanCacheSize         int           `envconfig:"CRM_BILLING_PLAN_CACHE_SIZE" default:"16"`
	PlanCacheTTL          time.Duration `envconfig:"CRM_BILLING_PLAN_CACHE_TTL" default:"10m"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"CRM_CRON_INTERVAL" default:"15m"`
	BatchLimit int           `envconfig:"CRM_CRON_BATCH_LIMIT" default:"100"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}
	db.DSN = u.String()
	return nil
}
