package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Cache    CacheConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Password PasswordConfig
	Pricing  PricingConfig
	Stripe   StripeConfig
	Supplier SupplierConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Payouts  PayoutConfig

	AuthRateLimit AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"TRADELINES_APP_ENV" required:"true"`
	Port         string   `envconfig:"TRADELINES_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"TRADELINES_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TRADELINES_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool     `envconfig:"TRADELINES_AUTO_MIGRATE" default:"false"`
	CORSOrigins  []string `envconfig:"TRADELINES_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRADELINES_SERVICE_KIND" default:"api"`

	// MetricsAddr is where workers serve /metrics; empty disables it.
	MetricsAddr string `envconfig:"TRADELINES_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADELINES_DB_DSN"`
	Driver string `envconfig:"TRADELINES_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADELINES_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADELINES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADELINES_DB_USER"`
	LegacyPassword string `envconfig:"TRADELINES_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADELINES_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADELINES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADELINES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADELINES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADELINES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADELINES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TRADELINES_DB_SLOW_QUERY" default:"500ms"`

	// PaymentTxTimeout bounds the payment transaction, which calls the supplier.
	PaymentTxTimeout time.Duration `envconfig:"TRADELINES_DB_PAYMENT_TX_TIMEOUT" default:"15s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADELINES_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADELINES_REDIS_ADDR"`
	Password     string        `envconfig:"TRADELINES_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADELINES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADELINES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADELINES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADELINES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADELINES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADELINES_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CacheConfig struct {
	CatalogTTL time.Duration `envconfig:"TRADELINES_CACHE_CATALOG_TTL" default:"15m"`
	BrokerTTL  time.Duration `envconfig:"TRADELINES_CACHE_BROKER_TTL" default:"1h"`
	OrderTTL   time.Duration `envconfig:"TRADELINES_CACHE_ORDER_TTL" default:"5m"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRADELINES_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRADELINES_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRADELINES_JWT_EXPIRATION_MINUTES" required:"true"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// AdminConfig holds the operator credential exchanged for admin tokens.
// SecretHash is an argon2id hash produced by the same parameters as broker secrets.
type AdminConfig struct {
	APIKey     string `envconfig:"TRADELINES_ADMIN_API_KEY"`
	SecretHash string `envconfig:"TRADELINES_ADMIN_SECRET_HASH"`
}

// AuthRateLimitConfig throttles the token exchange per client IP and per API key.
type AuthRateLimitConfig struct {
	TokenWindow   time.Duration `envconfig:"TRADELINES_AUTH_RATE_LIMIT_TOKEN_WINDOW" default:"1m"`
	TokenIPLimit  int           `envconfig:"TRADELINES_AUTH_RATE_LIMIT_TOKEN_IP_LIMIT" default:"20"`
	TokenKeyLimit int           `envconfig:"TRADELINES_AUTH_RATE_LIMIT_TOKEN_KEY_LIMIT" default:"5"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TRADELINES_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TRADELINES_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TRADELINES_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TRADELINES_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TRADELINES_ARGON_KEY_LEN" default:"32"`
}

// PricingConfig holds the platform-controlled revenue share policy.
type PricingConfig struct {
	DefaultRevenueShare float64 `envconfig:"TRADELINES_PRICING_DEFAULT_REVENUE_SHARE" default:"10"`
	MinRevenueShare     float64 `envconfig:"TRADELINES_PRICING_MIN_REVENUE_SHARE" default:"10"`
	MaxRevenueShare     float64 `envconfig:"TRADELINES_PRICING_MAX_REVENUE_SHARE" default:"25"`
	MultiLinePromoCode  string  `envconfig:"TRADELINES_PRICING_MULTI_LINE_PROMO" default:"10-30OFF"`
}

func (p PricingConfig) validate() error {
	if p.MinRevenueShare < 0 || p.MaxRevenueShare > 100 || p.MinRevenueShare > p.MaxRevenueShare {
		return fmt.Errorf("invalid revenue share bounds [%v, %v]", p.MinRevenueShare, p.MaxRevenueShare)
	}
	if p.DefaultRevenueShare < p.MinRevenueShare || p.DefaultRevenueShare > p.MaxRevenueShare {
		return fmt.Errorf("default revenue share %v outside [%v, %v]", p.DefaultRevenueShare, p.MinRevenueShare, p.MaxRevenueShare)
	}
	return nil
}

type StripeConfig struct {
	APIKey string `envconfig:"TRADELINES_STRIPE_API_KEY"`
	Secret string `envconfig:"TRADELINES_STRIPE_SECRET"`
	Env    string `envconfig:"TRADELINES_STRIPE_ENV" default:"test"`

	CheckoutSuccessURL string `envconfig:"TRADELINES_STRIPE_SUCCESS_URL" default:"http://localhost:3000/success?session_id={CHECKOUT_SESSION_ID}"`
	CheckoutCancelURL  string `envconfig:"TRADELINES_STRIPE_CANCEL_URL" default:"http://localhost:3000/cancel"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// SupplierConfig points at the upstream tradeline supplier.
type SupplierConfig struct {
	BaseURL        string        `envconfig:"TRADELINES_SUPPLIER_BASE_URL" default:"https://tradelinesupply.com/wp-json/wc/v3"`
	ConsumerKey    string        `envconfig:"TRADELINES_SUPPLIER_CONSUMER_KEY"`
	ConsumerSecret string        `envconfig:"TRADELINES_SUPPLIER_CONSUMER_SECRET"`
	Timeout        time.Duration `envconfig:"TRADELINES_SUPPLIER_TIMEOUT" default:"10s"`
	RatePerSecond  float64       `envconfig:"TRADELINES_SUPPLIER_RATE_PER_SECOND" default:"5"`
	Burst          int           `envconfig:"TRADELINES_SUPPLIER_BURST" default:"5"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRADELINES_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TRADELINES_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TRADELINES_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FulfillmentTopic        string `envconfig:"TRADELINES_PUBSUB_FULFILLMENT_TOPIC" default:"tl-fulfillment-automation"`
	FulfillmentSubscription string `envconfig:"TRADELINES_PUBSUB_FULFILLMENT_SUBSCRIPTION" default:"tl-fulfillment-automation-sub"`
	NotificationTopic       string `envconfig:"TRADELINES_PUBSUB_NOTIFICATION_TOPIC" default:"tl-notification-events"`
	NotificationSub         string `envconfig:"TRADELINES_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"tl-notification-events-sub"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRADELINES_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRADELINES_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRADELINES_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"TRADELINES_OUTBOX_RETENTION_DAYS" default:"30"`
}

// PayoutConfig drives the scheduled payout batch.
type PayoutConfig struct {
	BatchInterval time.Duration `envconfig:"TRADELINES_PAYOUT_BATCH_INTERVAL" default:"24h"`
	PeriodDays    int           `envconfig:"TRADELINES_PAYOUT_PERIOD_DAYS" default:"7"`
	DefaultMethod string        `envconfig:"TRADELINES_PAYOUT_DEFAULT_METHOD" default:"ACH"`
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
