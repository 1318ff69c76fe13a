// Package config loads the service settings: processor credentials, the charge
// reference prefix, callback URLs and the AWS resources backing the stores.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML file read before environment overrides.
const ConfigFileEnv = "SELLAPP_CONFIG_FILE"

// Config is passed explicitly into every component; nothing reads globals.
type Config struct {
	// Processor
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	ChargeDescription string `mapstructure:"charge_description"`
	XStore            string `mapstructure:"x_store"`
	Debug             bool   `mapstructure:"debug"`

	// Callbacks handed to the processor at charge creation.
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	// WebhookTokenTTL bounds how long a signed webhook nonce is accepted.
	WebhookTokenTTL time.Duration `mapstructure:"webhook_token_ttl"`
	ReturnURL       string        `mapstructure:"return_url"`
	CheckoutURL     string        `mapstructure:"checkout_url"`
	StoreURL        string        `mapstructure:"store_url"`
	Origin          string        `mapstructure:"origin"`

	// Storage and alerting
	OrdersTable      string        `mapstructure:"orders_table"`
	IdempotencyTable string        `mapstructure:"idempotency_table"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
	AlertsQueueURL   string        `mapstructure:"alerts_queue_url"`

	// HTTP
	ListenAddr     string  `mapstructure:"listen_addr"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// TrustedProxies may set the client IP through X-Forwarded-For. Empty
	// means the connection's remote address is the client IP.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

var envBindings = map[string][]string{
	"api_key":            {"SELLAPP_API_KEY"},
	"base_url":           {"SELLAPP_BASE_URL"},
	"charge_description": {"SELLAPP_CHARGE_DESCRIPTION"},
	"x_store":            {"SELLAPP_X_STORE"},
	"debug":              {"SELLAPP_DEBUG"},
	"webhook_url":        {"SELLAPP_WEBHOOK_URL"},
	"webhook_secret":     {"SELLAPP_WEBHOOK_SECRET"},
	"webhook_token_ttl":  {"SELLAPP_WEBHOOK_TOKEN_TTL"},
	"return_url":         {"SELLAPP_RETURN_URL"},
	"checkout_url":       {"SELLAPP_CHECKOUT_URL"},
	"store_url":          {"SELLAPP_STORE_URL"},
	"origin":             {"SELLAPP_ORIGIN"},
	"orders_table":       {"ORDERS_TABLE"},
	"idempotency_table":  {"IDEMPOTENCY_TABLE"},
	"idempotency_ttl":    {"IDEMPOTENCY_TTL"},
	"alerts_queue_url":   {"ALERTS_QUEUE_URL"},
	"listen_addr":        {"LISTEN_ADDR"},
	"rate_limit_rps":     {"RATE_LIMIT_RPS"},
	"rate_limit_burst":   {"RATE_LIMIT_BURST"},
	"trusted_proxies":    {"TRUSTED_PROXIES"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://sell.app/api")
	v.SetDefault("charge_description", "Charge #")
	v.SetDefault("debug", false)
	v.SetDefault("origin", "ORDERFLOW")
	v.SetDefault("webhook_token_ttl", 168*time.Hour)
	v.SetDefault("idempotency_ttl", 48*time.Hour)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("rate_limit_rps", 20.0)
	v.SetDefault("rate_limit_burst", 40)
}

// Load builds the config from defaults, the optional file named by
// SELLAPP_CONFIG_FILE, and environment variables (highest precedence).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

// Validate reports settings the API cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIKey) == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	if strings.TrimSpace(c.WebhookURL) == "" {
		errs = append(errs, errors.New("webhook_url is required"))
	}
	if c.OrdersTable == "" {
		errs = append(errs, errors.New("orders_table is required"))
	}
	return errors.Join(errs...)
}
