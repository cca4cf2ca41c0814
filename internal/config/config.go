package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"elspot2mqtt/internal/logging"
	"elspot2mqtt/internal/pricing"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Market       MarketConfig       `mapstructure:"market"`
	Costs        CostsConfig        `mapstructure:"costs"`
	Levels       []LevelRule        `mapstructure:"levels"`
	Horizon      HorizonConfig      `mapstructure:"horizon"`
	Cache        CacheConfig        `mapstructure:"cache"`
	ChargeWindow ChargeWindowConfig `mapstructure:"charge_window"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Export       ExportConfig       `mapstructure:"export"`
	Timezone     string             `mapstructure:"timezone"`
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
}

// MarketConfig identifies the upstream day-ahead price source.
type MarketConfig struct {
	Area           string        `mapstructure:"area"`
	Currency       string        `mapstructure:"currency"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
}

// CostsConfig carries the tariff figures. The import-side fields and the
// VAT percentage are required; a config that omits them is rejected.
type CostsConfig struct {
	ImportMarkup *float64 `mapstructure:"import_markup"`
	ImportGrid   *float64 `mapstructure:"import_grid"`
	ImportTax    *float64 `mapstructure:"import_tax"`

	ExportMarkup float64 `mapstructure:"export_markup"`
	ExportGrid   float64 `mapstructure:"export_grid"`
	ExportTax    float64 `mapstructure:"export_tax"`

	VATPercentage *float64 `mapstructure:"vat_percentage"`
}

// LevelRule is one classification rule; exactly one of the four bounds
// must be set.
type LevelRule struct {
	Floor   *float64 `mapstructure:"floor"`
	Ceiling *float64 `mapstructure:"ceiling"`
	Gte     *float64 `mapstructure:"gte"`
	Lte     *float64 `mapstructure:"lte"`
	Level   string   `mapstructure:"level"`
	Index   int      `mapstructure:"index"`
}

// HorizonConfig tunes look-ahead aggregation.
type HorizonConfig struct {
	AvgWindowSize   int           `mapstructure:"avg_window_size"`
	MinimaLookahead int           `mapstructure:"minima_lookahead"`
	Offset          time.Duration `mapstructure:"offset"`
	Decimals        int           `mapstructure:"decimals"`
}

// CacheConfig governs the local price cache.
type CacheConfig struct {
	RetentionDays    int `mapstructure:"retention_days"`
	WindowDays       int `mapstructure:"window_days"`
	PublishAfterHour int `mapstructure:"publish_after_hour"`
}

// ChargeWindowConfig defines the preferred charging interval.
type ChargeWindowConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Start     string  `mapstructure:"start"`
	End       string  `mapstructure:"end"`
	Threshold float64 `mapstructure:"threshold"`
}

// MQTTConfig covers the publish sink.
type MQTTConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	ClientID string        `mapstructure:"client_id"`
	Topic    string        `mapstructure:"topic"`
	Retain   bool          `mapstructure:"retain"`
	Publish  bool          `mapstructure:"publish"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig governs the serve-mode cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ELSPOT2MQTT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("elspot2mqtt")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Levels) == 0 {
		cfg.Levels = defaultLevels()
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
	v.SetDefault("app.name", "elspot2mqtt")
	v.SetDefault("app.environment", "production")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("timezone", "Europe/Stockholm")

	v.SetDefault("market.currency", "SEK")
	v.SetDefault("market.base_url", "https://dataportal-api.nordpoolgroup.com/api")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "elspot2mqtt/1.0")
	v.SetDefault("market.requests_per_sec", 1.0)

	v.SetDefault("horizon.avg_window_size", 120)
	v.SetDefault("horizon.minima_lookahead", 4)
	v.SetDefault("horizon.offset", "15m")
	v.SetDefault("horizon.decimals", 3)

	v.SetDefault("cache.retention_days", 31)
	v.SetDefault("cache.window_days", 5)
	v.SetDefault("cache.publish_after_hour", 13)

	v.SetDefault("charge_window.enabled", true)
	v.SetDefault("charge_window.start", "00:00")
	v.SetDefault("charge_window.end", "05:59")
	v.SetDefault("charge_window.threshold", 0.0)

	v.SetDefault("mqtt.host", "127.0.0.1")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.topic", "elspot2mqtt")
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.publish", true)
	v.SetDefault("mqtt.timeout", "10s")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x656c7370))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func defaultLevels() []LevelRule {
	bound := func(v float64) *float64 { return &v }
	return []LevelRule{
		{Gte: bound(10), Level: "VERY_EXPENSIVE", Index: 2},
		{Gte: bound(5), Level: "EXPENSIVE", Index: 1},
		{Lte: bound(-5), Level: "CHEAP", Index: -1},
		{Lte: bound(-10), Level: "VERY_CHEAP", Index: -2},
	}
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

// Validate performs sanity checks on the configuration values. Tariff and
// serialization problems are operator errors and abort the run.
func (c *Config) Validate() error {
	if c.Market.Area == "" {
		return fmt.Errorf("market.area is required")
	}
	if c.Costs.ImportMarkup == nil {
		return fmt.Errorf("costs.import_markup is required")
	}
	if c.Costs.ImportGrid == nil {
		return fmt.Errorf("costs.import_grid is required")
	}
	if c.Costs.ImportTax == nil {
		return fmt.Errorf("costs.import_tax is required")
	}
	if c.Costs.VATPercentage == nil {
		return fmt.Errorf("costs.vat_percentage is required")
	}
	if *c.Costs.VATPercentage < 0 {
		return fmt.Errorf("costs.vat_percentage cannot be negative")
	}
	if c.Horizon.AvgWindowSize <= 0 {
		return fmt.Errorf("horizon.avg_window_size must be greater than zero")
	}
	if c.Horizon.MinimaLookahead <= 0 {
		return fmt.Errorf("horizon.minima_lookahead must be greater than zero")
	}
	if c.Horizon.Offset < 0 {
		return fmt.Errorf("horizon.offset cannot be negative")
	}
	if c.Cache.WindowDays <= 0 {
		return fmt.Errorf("cache.window_days must be greater than zero")
	}
	if c.Cache.RetentionDays < c.Cache.WindowDays {
		return fmt.Errorf("cache.retention_days must cover cache.window_days")
	}
	if c.Cache.PublishAfterHour < 0 || c.Cache.PublishAfterHour > 23 {
		return fmt.Errorf("cache.publish_after_hour must be within 0-23")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.MQTT.Publish && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt.publish is enabled")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if _, err := c.Rules(); err != nil {
		return err
	}
	if c.ChargeWindow.Enabled {
		for _, clock := range []string{c.ChargeWindow.Start, c.ChargeWindow.End} {
			if _, err := time.Parse("15:04", clock); err != nil {
				return fmt.Errorf("invalid charge_window time %q: %w", clock, err)
			}
		}
	}
	return nil
}

// Tariff converts the cost figures into the pricing model.
func (c *Config) Tariff() pricing.Tariff {
	return pricing.Tariff{
		ImportMarkup: *c.Costs.ImportMarkup,
		ImportGrid:   *c.Costs.ImportGrid,
		ImportTax:    *c.Costs.ImportTax,
		ExportMarkup: c.Costs.ExportMarkup,
		ExportGrid:   c.Costs.ExportGrid,
		ExportTax:    c.Costs.ExportTax,
		VATPercent:   *c.Costs.VATPercentage,
	}
}

// Rules converts the configured level list into tagged rule variants.
func (c *Config) Rules() ([]pricing.Rule, error) {
	rules := make([]pricing.Rule, 0, len(c.Levels))
	for i, lr := range c.Levels {
		if lr.Level == "" {
			return nil, fmt.Errorf("levels[%d]: level name is required", i)
		}

		bounds := 0
		rule := pricing.Rule{Level: lr.Level, Index: lr.Index}
		if lr.Floor != nil {
			rule.Kind = pricing.RuleFloor
			rule.Threshold = *lr.Floor
			bounds++
		}
		if lr.Ceiling != nil {
			rule.Kind = pricing.RuleCeiling
			rule.Threshold = *lr.Ceiling
			bounds++
		}
		if lr.Gte != nil {
			rule.Kind = pricing.RuleRelativeGte
			rule.Threshold = *lr.Gte
			bounds++
		}
		if lr.Lte != nil {
			rule.Kind = pricing.RuleRelativeLte
			rule.Threshold = *lr.Lte
			bounds++
		}
		if bounds != 1 {
			return nil, fmt.Errorf("levels[%d]: exactly one of floor/ceiling/gte/lte must be set", i)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
