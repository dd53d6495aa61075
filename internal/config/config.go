package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"entry-confirm-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	PriceFeed PriceFeedConfig `mapstructure:"pricefeed"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig covers the execution queue broker.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	JobRetention time.Duration `mapstructure:"job_retention"`
}

// MonitorConfig governs the per-mode monitoring loops. The cadence here
// is a fallback; the interval stored with the global threshold set wins
// once the service is running.
type MonitorConfig struct {
	Real         ModeConfig    `mapstructure:"real"`
	Simulation   ModeConfig    `mapstructure:"simulation"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	AlignToStart bool          `mapstructure:"align_to_start"`
}

// ModeConfig sizes one trade mode's loop.
type ModeConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Workers  int           `mapstructure:"workers"`
}

// PriceFeedConfig captures ticker connectivity.
type PriceFeedConfig struct {
	VenueURLs      map[string]string `mapstructure:"venue_urls"`
	DefaultVenue   string            `mapstructure:"default_venue"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	UserAgent      string            `mapstructure:"user_agent"`
	CacheTTL       time.Duration     `mapstructure:"cache_ttl"`
}

// MetricsConfig exposes the Prometheus listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENTRYWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "entrywatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("monitor.real.enabled", true)
	v.SetDefault("monitor.real.interval", "60s")
	v.SetDefault("monitor.real.workers", 8)
	v.SetDefault("monitor.simulation.enabled", true)
	v.SetDefault("monitor.simulation.interval", "60s")
	v.SetDefault("monitor.simulation.workers", 8)
	v.SetDefault("monitor.fetch_timeout", "10s")
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.align_to_start", true)

	v.SetDefault("pricefeed.venue_urls", map[string]string{
		"binance": "https://api.binance.com",
	})
	v.SetDefault("pricefeed.default_venue", "binance")
	v.SetDefault("pricefeed.request_timeout", "10s")
	v.SetDefault("pricefeed.user_agent", "entrywatcher/1.0")
	v.SetDefault("pricefeed.cache_ttl", "5s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.job_retention", "168h")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9090")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.Real.Interval <= 0 {
		return fmt.Errorf("monitor.real.interval must be greater than zero")
	}
	if c.Monitor.Simulation.Interval <= 0 {
		return fmt.Errorf("monitor.simulation.interval must be greater than zero")
	}
	if c.Monitor.Real.Workers <= 0 || c.Monitor.Simulation.Workers <= 0 {
		return fmt.Errorf("monitor workers must be greater than zero")
	}
	if len(c.PriceFeed.VenueURLs) == 0 {
		return fmt.Errorf("pricefeed.venue_urls must name at least one venue")
	}
	if _, ok := c.PriceFeed.VenueURLs[c.PriceFeed.DefaultVenue]; !ok {
		return fmt.Errorf("pricefeed.default_venue %q has no url configured", c.PriceFeed.DefaultVenue)
	}
	if c.PriceFeed.CacheTTL < 0 {
		return fmt.Errorf("pricefeed.cache_ttl cannot be negative")
	}
	shortest := c.Monitor.Real.Interval
	if c.Monitor.Simulation.Interval < shortest {
		shortest = c.Monitor.Simulation.Interval
	}
	if c.PriceFeed.CacheTTL >= shortest {
		return fmt.Errorf("pricefeed.cache_ttl must stay below the monitoring interval")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	return nil
}

// ModeFor returns the loop settings for one trade mode.
func (c *Config) ModeFor(mode string) ModeConfig {
	if strings.EqualFold(mode, "REAL") {
		return c.Monitor.Real
	}
	return c.Monitor.Simulation
}
