// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"artisan-market/internal/pricing"
	"artisan-market/internal/telemetry"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	StoreBackend string
	RedisURL     string
	SQLitePath   string
	DatabaseURL  string
	StoreTimeout time.Duration
	CartTTL      time.Duration

	PersistPromo      bool
	PromoTablePath    string
	TaxRate           decimal.Decimal
	FreeShippingAbove int64
	ShippingFee       int64
	MaxLineQuantity   int64

	MetricsExporter string
	OTLPEndpoint    string
	OTLPInsecure    bool
	MetricsInterval time.Duration

	KafkaBrokers    []string
	KafkaOrderTopic string

	ShutdownTimeout time.Duration
}

func Default() *Config {
	policy := pricing.DefaultPolicy()
	return &Config{
		Env:               "production",
		HTTPAddr:          ":8080",
		LogLevel:          "info",
		StoreBackend:      BackendMemory,
		SQLitePath:        "artisan-market.db",
		StoreTimeout:      2 * time.Second,
		TaxRate:           policy.TaxRate,
		FreeShippingAbove: policy.FreeShippingAbove,
		ShippingFee:       policy.ShippingFee,
		MaxLineQuantity:   policy.MaxLineQuantity,
		MetricsExporter:   telemetry.ExporterNone,
		MetricsInterval:   15 * time.Second,
		KafkaOrderTopic:   "orders.placed",
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load reads an optional .env file, applies environment overrides to the
// defaults and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "load %s", f)
		}
	}

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overrides fields whose environment variable is set.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = strings.ToLower(v)
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.StoreBackend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if err := envDuration("STORE_TIMEOUT", &c.StoreTimeout); err != nil {
		return err
	}
	if err := envDuration("CART_TTL", &c.CartTTL); err != nil {
		return err
	}
	if err := envDuration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout); err != nil {
		return err
	}

	if v := os.Getenv("PERSIST_PROMO"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalid("PERSIST_PROMO", v)
		}
		c.PersistPromo = b
	}
	if v := os.Getenv("PROMO_TABLE_PATH"); v != "" {
		c.PromoTablePath = v
	}
	if v := os.Getenv("TAX_RATE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return invalid("TAX_RATE", v)
		}
		c.TaxRate = d
	}
	if err := envInt("FREE_SHIPPING_ABOVE", &c.FreeShippingAbove); err != nil {
		return err
	}
	if err := envInt("SHIPPING_FEE", &c.ShippingFee); err != nil {
		return err
	}
	if err := envInt("MAX_LINE_QUANTITY", &c.MaxLineQuantity); err != nil {
		return err
	}

	if v := os.Getenv("METRICS_EXPORTER"); v != "" {
		c.MetricsExporter = strings.ToLower(v)
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		c.OTLPEndpoint = v
	}
	if v := os.Getenv("OTLP_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalid("OTLP_INSECURE", v)
		}
		c.OTLPInsecure = b
	}
	if err := envDuration("METRICS_INTERVAL", &c.MetricsInterval); err != nil {
		return err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_ORDER_TOPIC"); v != "" {
		c.KafkaOrderTopic = v
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.Wrap(ErrInvalidConfig, "REDIS_URL is required for the redis backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.Wrap(ErrInvalidConfig, "SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.Wrap(ErrInvalidConfig, "DATABASE_URL is required for the postgres backend")
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown store backend %q", c.StoreBackend)
	}

	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Wrapf(ErrInvalidConfig, "tax rate %s must be between 0 and 1", c.TaxRate)
	}
	if c.FreeShippingAbove < 0 || c.ShippingFee < 0 {
		return errors.Wrap(ErrInvalidConfig, "shipping amounts cannot be negative")
	}
	if c.MaxLineQuantity < 1 || c.MaxLineQuantity > 1_000_000 {
		return errors.Wrap(ErrInvalidConfig, "MAX_LINE_QUANTITY must be between 1 and 1000000")
	}
	switch c.MetricsExporter {
	case telemetry.ExporterNone, telemetry.ExporterOTLP:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown metrics exporter %q", c.MetricsExporter)
	}
	if c.StoreTimeout < 0 || c.CartTTL < 0 {
		return errors.Wrap(ErrInvalidConfig, "durations cannot be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// Policy returns the pricing policy described by the config.
func (c *Config) Policy() pricing.Policy {
	return pricing.Policy{
		TaxRate:           c.TaxRate,
		FreeShippingAbove: c.FreeShippingAbove,
		ShippingFee:       c.ShippingFee,
		MaxLineQuantity:   c.MaxLineQuantity,
		MaxUnitPrice:      pricing.DefaultMaxUnitPrice,
	}
}

// Telemetry returns the metrics exporter settings.
func (c *Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		ServiceName:  "artisan-market",
		Exporter:     c.MetricsExporter,
		OTLPEndpoint: c.OTLPEndpoint,
		Insecure:     c.OTLPInsecure,
		Interval:     c.MetricsInterval,
	}
}

// PromoTable loads PROMO_TABLE_PATH, or returns the built-in codes when unset.
func (c *Config) PromoTable() (pricing.PromoTable, error) {
	if c.PromoTablePath == "" {
		return pricing.DefaultPromoTable(), nil
	}
	return pricing.LoadPromoTable(c.PromoTablePath)
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return invalid(key, v)
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return invalid(key, v)
	}
	*dst = n
	return nil
}

func invalid(key, value string) error {
	return errors.Wrap(ErrInvalidConfig, fmt.Sprintf("%s=%q", key, value))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
