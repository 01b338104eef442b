// Package config loads process configuration from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "MINISHOP"

// Load reads path when it is non-empty, then applies MINISHOP_* environment overrides.
// MINISHOP_STORE_DRIVER overrides store.driver, and so on.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Payments.Currency = strings.ToLower(strings.TrimSpace(cfg.Payments.Currency))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongoDB:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("store.mongo_uri and store.mongo_database are required for the mongodb driver"))
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, mongodb, postgres", c.Store.Driver))
	}

	switch c.Payments.Provider {
	case ProviderSimulator:
		if c.Payments.SimSuccessRate < 0 || c.Payments.SimSuccessRate > 1 {
			errs = append(errs, errors.New("payments.sim_success_rate must be between 0 and 1"))
		}
	case ProviderStripe:
		if c.Payments.StripeSecretKey == "" || c.Payments.StripeWebhookSecret == "" {
			errs = append(errs, errors.New("payments.stripe_secret_key and payments.stripe_webhook_secret are required for stripe"))
		}
	default:
		errs = append(errs, fmt.Errorf("payments.provider %q is not one of paysim, stripe", c.Payments.Provider))
	}

	if len(c.Payments.Currency) != 3 {
		errs = append(errs, fmt.Errorf("payments.currency %q is not an ISO 4217 code", c.Payments.Currency))
	}
	if c.Payments.AttemptTTL <= 0 {
		errs = append(errs, errors.New("payments.attempt_ttl must be positive"))
	}
	if c.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("sweep.interval must be positive"))
	}
	if c.HTTP.CheckoutRate < 0 {
		errs = append(errs, errors.New("http.checkout_rate must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
