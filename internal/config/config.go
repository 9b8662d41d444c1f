// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"order-tracker-api/internal/store"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"gorm.io/gorm/logger"
)

// Config is resolved once at startup and passed to constructors.
type Config struct {
	Port    string `env:"PORT"     envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"release"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Embedded SQLite file, used when LibSQLURL is empty.
	CacheDBPath string `env:"CACHE_DB_PATH" envDefault:"data/orders.db"`

	LibSQLURL       string `env:"LIBSQL_URL"`
	LibSQLAuthToken string `env:"LIBSQL_AUTH_TOKEN"`

	OrderAPIURL     string        `env:"ORDER_API_URL"    envDefault:"https://us-central1-get-feedback-a0119.cloudfunctions.net/app/api/shopee/getOrderDetailsForCookie"`
	TrackingAPIURL  string        `env:"TRACKING_API_URL" envDefault:"https://spx.vn/shipment/order/open/order/get_order_info"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
}

// Load parses the environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// StoreOptions selects the durable backend.
func (c Config) StoreOptions() store.Options {
	gormLevel := logger.Warn
	if c.Level() <= log.DebugLevel {
		gormLevel = logger.Info
	}
	return store.Options{
		Path:            c.CacheDBPath,
		LibSQLURL:       c.LibSQLURL,
		LibSQLAuthToken: c.LibSQLAuthToken,
		LogLevel:        gormLevel,
	}
}
