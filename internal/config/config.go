package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fxwatch/internal/logging"
	"fxwatch/internal/provider"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
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

// SchedulerConfig governs evaluation cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ProviderSettings is the per-provider runtime tuning block.
type ProviderSettings struct {
	Enabled        bool          `mapstructure:"enabled"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// MockProviderConfig parameterises the internal feed adapter.
type MockProviderConfig struct {
	ProviderSettings `mapstructure:",squash"`
	Latency          time.Duration `mapstructure:"latency"`
}

// ExchangeRateProviderConfig parameterises the public REST adapter.
type ExchangeRateProviderConfig struct {
	ProviderSettings `mapstructure:",squash"`
	BaseURL          string `mapstructure:"base_url"`
	APIKey           string `mapstructure:"api_key"`
	UserAgent        string `mapstructure:"user_agent"`
}

// ChainlinkProviderConfig parameterises the on-chain feed adapter.
type ChainlinkProviderConfig struct {
	ProviderSettings `mapstructure:",squash"`
	RPCURL           string            `mapstructure:"rpc_url"`
	Feeds            map[string]string `mapstructure:"feeds"`
}

// ProvidersConfig selects and tunes the rate sources.
type ProvidersConfig struct {
	Primary      string                     `mapstructure:"primary"`
	Compare      []string                   `mapstructure:"compare"`
	WatchedPairs []string                   `mapstructure:"watched_pairs"`
	Mock         MockProviderConfig         `mapstructure:"mock"`
	ExchangeRate ExchangeRateProviderConfig `mapstructure:"exchangerate"`
	Chainlink    ChainlinkProviderConfig    `mapstructure:"chainlink"`
}

// AlertingConfig governs the evaluation engine.
type AlertingConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	UseAggregator bool `mapstructure:"use_aggregator"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FXWATCH")
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
	v.SetDefault("app.name", "fxwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x66787761))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9464")

	v.SetDefault("providers.primary", provider.MockName)
	v.SetDefault("providers.compare", []string{provider.MockName, provider.ExchangeRateName})
	v.SetDefault("providers.watched_pairs", []string{"USD_EUR"})

	// The internal feed refreshes faster than external sources do.
	v.SetDefault("providers.mock.enabled", true)
	v.SetDefault("providers.mock.cache_ttl", "1m")
	v.SetDefault("providers.mock.max_retries", 3)
	v.SetDefault("providers.mock.request_timeout", "10s")
	v.SetDefault("providers.mock.retry_backoff", "1s")
	v.SetDefault("providers.mock.latency", "50ms")

	v.SetDefault("providers.exchangerate.enabled", true)
	v.SetDefault("providers.exchangerate.base_url", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("providers.exchangerate.user_agent", "fxwatch/1.0")
	v.SetDefault("providers.exchangerate.cache_ttl", "5m")
	v.SetDefault("providers.exchangerate.max_retries", 3)
	v.SetDefault("providers.exchangerate.request_timeout", "10s")
	v.SetDefault("providers.exchangerate.retry_backoff", "1s")

	v.SetDefault("providers.chainlink.enabled", false)
	v.SetDefault("providers.chainlink.cache_ttl", "5m")
	v.SetDefault("providers.chainlink.max_retries", 3)
	v.SetDefault("providers.chainlink.request_timeout", "10s")
	v.SetDefault("providers.chainlink.retry_backoff", "1s")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.use_aggregator", false)

	v.SetDefault("export.max_data_points", 100000)

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
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Providers.Primary == "" {
		return fmt.Errorf("providers.primary must be set")
	}
	for _, pair := range c.Providers.WatchedPairs {
		if _, ok := provider.NormalizePair(pair); !ok {
			return fmt.Errorf("providers.watched_pairs entry %q is not BASE_QUOTE", pair)
		}
	}
	if c.Providers.Chainlink.Enabled && c.Providers.Chainlink.RPCURL == "" {
		return fmt.Errorf("providers.chainlink.rpc_url must be set when the chainlink provider is enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
