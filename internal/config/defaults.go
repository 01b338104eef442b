package config

import (
	"time"

	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"service.name":      "minishop",
	"service.env":       "dev",
	"service.log_level": "info",
	"service.log_file":  "",

	"http.addr":                ":8080",
	"http.read_header_timeout": 5 * time.Second,
	"http.shutdown_timeout":    10 * time.Second,
	"http.checkout_rate":       5.0,
	"http.checkout_burst":      10,

	"auth.jwt_secret":        "",
	"auth.trust_user_header": true,

	"store.driver":         DriverMemory,
	"store.mongo_uri":      "mongodb://localhost:27017/?replicaSet=rs0",
	"store.mongo_database": "minishop",
	"store.postgres_dsn":   "",

	"payments.provider":              ProviderSimulator,
	"payments.currency":              "usd",
	"payments.attempt_ttl":           30 * time.Minute,
	"payments.stripe_secret_key":     "",
	"payments.stripe_webhook_secret": "",
	"payments.signature_tolerance":   5 * time.Minute,
	"payments.sim_webhook_secret":    "whsec_local",
	"payments.sim_success_rate":      0.9,

	"sweep.interval":     time.Minute,
	"sweep.batch":        100,
	"sweep.orphan_after": 30 * time.Minute,

	"outbox.queue_size":      1024,
	"outbox.concurrency":     8,
	"outbox.handler_timeout": 30 * time.Second,

	"kafka.brokers": "",
	"kafka.topic":   "minishop.events",

	"smtp.addr":     "",
	"smtp.username": "",
	"smtp.password": "",
	"smtp.from":     "shop@localhost",
}

// legacyEnv keeps the plain variable names the service has always read.
var legacyEnv = map[string]string{
	"service.name":     "SERVICE_NAME",
	"service.env":      "ENV",
	"service.log_file": "LOG_FILE",
}

func setDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
