package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisAddr    string `default:"" usage:"Redis address for the catalog price cache; empty disables caching" flag:"redis-addr"`
	Catalog      CatalogConfig
	Notification NotificationConfig
	Gateway      GatewayConfig
	Pricing      PricingConfig
	AutoDeliver  AutoDeliverConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CatalogConfig points at the catalog service that owns item prices.
type CatalogConfig struct {
	BaseURL  string        `usage:"Catalog service base URL" flag:"catalog-url"`
	Timeout  time.Duration `default:"2s" usage:"Per-call catalog timeout"`
	CacheTTL time.Duration `default:"5m" usage:"Redis price cache TTL" flag:"catalog-cache-ttl"`
}

// NotificationConfig controls the outbound notification dispatcher.
type NotificationConfig struct {
	BaseURL   string        `usage:"Notification service base URL" flag:"notification-url"`
	Timeout   time.Duration `default:"5s" usage:"Per-send timeout"`
	Workers   int           `default:"4" usage:"Dispatcher worker count"`
	QueueSize int           `default:"256" usage:"Dispatcher queue capacity" flag:"notification-queue"`
}

// GatewayConfig holds the payment gateway endpoint and merchant key pair.
// KeySecret also verifies payment callback signatures.
type GatewayConfig struct {
	BaseURL   string        `usage:"Payment gateway base URL" flag:"gateway-url"`
	KeyID     string        `usage:"Gateway merchant key id" flag:"gateway-key-id"`
	KeySecret string        `usage:"Gateway merchant key secret" flag:"gateway-key-secret"`
	Timeout   time.Duration `default:"10s" usage:"Per-call gateway timeout"`
}

// PricingConfig holds the checkout pricing constants.
type PricingConfig struct {
	FreeShippingThreshold float64 `default:"500" usage:"Discounted subtotal at which shipping is free" flag:"free-shipping-threshold"`
	FlatShippingFee       float64 `default:"50" usage:"Shipping fee below the free threshold" flag:"flat-shipping-fee"`
	TaxRate               float64 `default:"0.05" usage:"Tax rate applied to the discounted subtotal" flag:"tax-rate"`
}

// AutoDeliverConfig controls the auto-delivery sweep.
type AutoDeliverConfig struct {
	Grace        time.Duration `default:"120h" usage:"How long after shipping before auto-delivery"`
	Interval     time.Duration `default:"1h" usage:"Sweep interval"`
	InitialDelay time.Duration `default:"10s" usage:"Delay before the first sweep" flag:"initial-delay"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/orders/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the application's ORDERS_-
// prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
