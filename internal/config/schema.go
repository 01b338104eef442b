package config

import "time"

// Config is the full process configuration.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Store    StoreConfig    `mapstructure:"store"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
}

type ServiceConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	// CheckoutRate is requests per second allowed per client IP on POST /checkout. Zero disables limiting.
	CheckoutRate  float64 `mapstructure:"checkout_rate"`
	CheckoutBurst int     `mapstructure:"checkout_burst"`
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens. Empty disables bearer auth.
	JWTSecret string `mapstructure:"jwt_secret"`
	// TrustUserHeader accepts X-User-ID from a trusted gateway when no bearer token is sent.
	TrustUserHeader bool `mapstructure:"trust_user_header"`
}

const (
	DriverMemory   = "memory"
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
)

type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
}

const (
	ProviderSimulator = "paysim"
	ProviderStripe    = "stripe"
)

type PaymentsConfig struct {
	Provider            string        `mapstructure:"provider"`
	Currency            string        `mapstructure:"currency"`
	AttemptTTL          time.Duration `mapstructure:"attempt_ttl"`
	StripeSecretKey     string        `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string        `mapstructure:"stripe_webhook_secret"`
	SignatureTolerance  time.Duration `mapstructure:"signature_tolerance"`
	SimWebhookSecret    string        `mapstructure:"sim_webhook_secret"`
	SimSuccessRate      float64       `mapstructure:"sim_success_rate"`
}

type SweepConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Batch       int           `mapstructure:"batch"`
	OrphanAfter time.Duration `mapstructure:"orphan_after"`
}

type OutboxConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	Concurrency    int           `mapstructure:"concurrency"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

type KafkaConfig struct {
	// Brokers is a comma separated list. Empty disables the relay.
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type SMTPConfig struct {
	// Addr is host:port. Empty logs notifications instead of sending them.
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}
