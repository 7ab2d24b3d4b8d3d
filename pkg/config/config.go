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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Payments     PaymentsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"DEALCREST_APP_ENV" required:"true"`
	Port         string `envconfig:"DEALCREST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEALCREST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DEALCREST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DEALCREST_DB_DSN"`
	Driver string `envconfig:"DEALCREST_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"DEALCREST_DB_HOST"`
	Port     int    `envconfig:"DEALCREST_DB_PORT" default:"5432"`
	User     string `envconfig:"DEALCREST_DB_USER"`
	Password string `envconfig:"DEALCREST_DB_PASSWORD"`
	Name     string `envconfig:"DEALCREST_DB_NAME"`
	SSLMode  string `envconfig:"DEALCREST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEALCREST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEALCREST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEALCREST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEALCREST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either DEALCREST_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"DEALCREST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEALCREST_REDIS_ADDR"`
	Password     string        `envconfig:"DEALCREST_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEALCREST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEALCREST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEALCREST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEALCREST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEALCREST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEALCREST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DEALCREST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DEALCREST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DEALCREST_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DEALCREST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DEALCREST_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"DEALCREST_STRIPE_API_KEY"`
	Secret string `envconfig:"DEALCREST_STRIPE_SECRET"`
	Env    string `envconfig:"DEALCREST_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaymentsConfig struct {
	Currency        string        `envconfig:"DEALCREST_PAYMENTS_CURRENCY" default:"usd"`
	SuccessURL      string        `envconfig:"DEALCREST_PAYMENTS_SUCCESS_URL" required:"true"`
	CancelURL       string        `envconfig:"DEALCREST_PAYMENTS_CANCEL_URL" required:"true"`
	SessionTimeout  time.Duration `envconfig:"DEALCREST_PAYMENTS_SESSION_TIMEOUT" default:"10s"`
	CallbackIdemTTL time.Duration `envconfig:"DEALCREST_PAYMENTS_CALLBACK_IDEM_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DEALCREST_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"DEALCREST_PUBSUB_DOMAIN_TOPIC" default:"dc-domain-events"`
	DomainSubscription string `envconfig:"DEALCREST_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DEALCREST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DEALCREST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DEALCREST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}
