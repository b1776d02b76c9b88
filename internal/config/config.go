package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Dispatch DispatchConfig
	Ledger   LedgerConfig
	Kafka    KafkaConfig
	Firebase FirebaseConfig
	Stripe   StripeConfig
	Maps     MapsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName          string        `env:"DB_NAME" envDefault:"ridecore"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `env:"NEW_RELIC_APP_NAME" envDefault:"ridecore"`
	LicenseKey string `env:"NEW_RELIC_LICENSE_KEY"`
	Enabled    bool   `env:"NEW_RELIC_ENABLED" envDefault:"false"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
	// Addr serves metrics on a separate listener for processes without an API (the consumer).
	Addr string `env:"METRICS_ADDR" envDefault:":2112"`
}

// DispatchConfig tunes matching, the ride lifecycle and background jobs.
type DispatchConfig struct {
	SearchRadiusKm  float64       `env:"DISPATCH_SEARCH_RADIUS_KM" envDefault:"5"`
	PendingTTL      time.Duration `env:"DISPATCH_PENDING_TTL" envDefault:"30m"`
	SweepInterval   time.Duration `env:"DISPATCH_SWEEP_INTERVAL" envDefault:"1m"`
	SweepBatch      int           `env:"DISPATCH_SWEEP_BATCH" envDefault:"100"`
	RequireOTP      bool          `env:"DISPATCH_REQUIRE_OTP" envDefault:"true"`
	StrictFareRules bool          `env:"DISPATCH_STRICT_FARE_RULES" envDefault:"true"`
	Workers         int           `env:"DISPATCH_WORKERS" envDefault:"4"`
	PollInterval    time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"1s"`
	MaxJobAttempts  int           `env:"DISPATCH_MAX_JOB_ATTEMPTS" envDefault:"5"`
	JobBackoff      time.Duration `env:"DISPATCH_JOB_BACKOFF" envDefault:"2s"`
	IncentiveReset  time.Duration `env:"DISPATCH_INCENTIVE_RESET" envDefault:"168h"`
}

// LedgerConfig tunes wallet postings.
type LedgerConfig struct {
	LockTimeout time.Duration `env:"LEDGER_LOCK_TIMEOUT" envDefault:"3s"`
	Currency    string        `env:"LEDGER_CURRENCY" envDefault:"inr"`
}

// KafkaConfig holds broker configuration. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers        []string `env:"KAFKA_BROKERS" envSeparator:","`
	RideEventTopic string   `env:"KAFKA_RIDE_EVENT_TOPIC" envDefault:"ride-events"`
	LocationTopic  string   `env:"KAFKA_LOCATION_TOPIC" envDefault:"driver-locations"`
	ConsumerGroup  string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"ridecore-locations"`
}

// FirebaseConfig holds push notification credentials. Empty ProjectID logs notifications instead.
type FirebaseConfig struct {
	ProjectID       string `env:"FIREBASE_PROJECT_ID"`
	CredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
}

// StripeConfig holds payment gateway credentials. Empty APIKey uses the mock gateway.
type StripeConfig struct {
	APIKey        string `env:"STRIPE_API_KEY"`
	SigningSecret string `env:"PAYMENT_SIGNING_SECRET"`
}

// MapsConfig holds the routing API key. Empty APIKey uses straight-line distance.
type MapsConfig struct {
	APIKey string `env:"GOOGLE_MAPS_API_KEY"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Dispatch.SearchRadiusKm <= 0 {
		errs = append(errs, errors.New("DISPATCH_SEARCH_RADIUS_KM must be positive"))
	}
	if c.Dispatch.PendingTTL <= 0 {
		errs = append(errs, errors.New("DISPATCH_PENDING_TTL must be positive"))
	}
	if c.Dispatch.SweepInterval <= 0 {
		errs = append(errs, errors.New("DISPATCH_SWEEP_INTERVAL must be positive"))
	}
	if c.Dispatch.Workers <= 0 {
		errs = append(errs, errors.New("DISPATCH_WORKERS must be positive"))
	}
	if c.Dispatch.MaxJobAttempts <= 0 {
		errs = append(errs, errors.New("DISPATCH_MAX_JOB_ATTEMPTS must be positive"))
	}
	if c.Ledger.LockTimeout <= 0 {
		errs = append(errs, errors.New("LEDGER_LOCK_TIMEOUT must be positive"))
	}
	if c.Stripe.APIKey != "" && c.Stripe.SigningSecret == "" {
		errs = append(errs, errors.New("PAYMENT_SIGNING_SECRET is required when STRIPE_API_KEY is set"))
	}
	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		errs = append(errs, errors.New("NEW_RELIC_LICENSE_KEY is required when NEW_RELIC_ENABLED is set"))
	}

	return errors.Join(errs...)
}
