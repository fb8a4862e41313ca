// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rvexel/feedcycler/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// SelectorsConfig maps logical control roles to the element-identifying
// expressions used to find them. Immutable during a run.
type SelectorsConfig struct {
	// React locates the react control for the current item.
	React string `mapstructure:"react" yaml:"react"`
	// RemoveReact identifiers are checked disjunctively; the presence of any
	// of them means the current item was already reacted to.
	RemoveReact []string `mapstructure:"remove_react" yaml:"remove_react"`
	// Advance locates the control that moves to the next item.
	Advance string `mapstructure:"advance" yaml:"advance"`
	// EligibilityContainer and EligibilityChild define the structural check:
	// the container must hold a minimum count of matching children for the
	// current item to be eligible for reaction at all.
	EligibilityContainer string `mapstructure:"eligibility_container" yaml:"eligibility_container"`
	EligibilityChild     string `mapstructure:"eligibility_child" yaml:"eligibility_child"`
}

// EngineConfig tunes the cycle engine and the per-action retry policies.
type EngineConfig struct {
	StartURL            string              `mapstructure:"start_url" yaml:"start_url"`
	MinEligibleChildren int                 `mapstructure:"min_eligible_children" yaml:"min_eligible_children"`
	MatchAllReact       bool                `mapstructure:"match_all_react" yaml:"match_all_react"`
	LogCycles           bool                `mapstructure:"log_cycles" yaml:"log_cycles"`
	ReactRetry          schemas.RetryPolicy `mapstructure:"react_retry" yaml:"react_retry"`
	AdvanceRetry        schemas.RetryPolicy `mapstructure:"advance_retry" yaml:"advance_retry"`
}

// TelemetryConfig controls the optional metrics listener.
type TelemetryConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsAddr    string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "feedcycler")
	v.SetDefault("logger.log_file", "feedcycler.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")

	// -- Engine --
	v.SetDefault("engine.min_eligible_children", 2)
	v.SetDefault("engine.match_all_react", false)
	v.SetDefault("engine.log_cycles", true)
	v.SetDefault("engine.react_retry.limit", 5)
	v.SetDefault("engine.react_retry.delay", "500ms")
	v.SetDefault("engine.react_retry.log_every", 10)
	v.SetDefault("engine.react_retry.fail_fast_on_absent", false)
	// The advance control is expected to show up eventually; poll forever
	// rather than stranding the loop on the current item.
	v.SetDefault("engine.advance_retry.limit", 0)
	v.SetDefault("engine.advance_retry.delay", "1s")
	v.SetDefault("engine.advance_retry.log_every", 20)

	// -- Telemetry --
	v.SetDefault("telemetry.metrics_enabled", false)
	v.SetDefault("telemetry.metrics_addr", "127.0.0.1:9290")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Selectors.React == "" {
		return fmt.Errorf("selectors.react is a required configuration field")
	}
	if c.Selectors.Advance == "" {
		return fmt.Errorf("selectors.advance is a required configuration field")
	}
	if err := validatePolicy("engine.react_retry", c.Engine.ReactRetry); err != nil {
		return err
	}
	if err := validatePolicy("engine.advance_retry", c.Engine.AdvanceRetry); err != nil {
		return err
	}
	if c.Engine.MinEligibleChildren < 0 {
		return fmt.Errorf("engine.min_eligible_children must not be negative")
	}
	if c.Telemetry.MetricsEnabled && c.Telemetry.MetricsAddr == "" {
		return fmt.Errorf("telemetry.metrics_addr is required when metrics are enabled")
	}
	return nil
}

func validatePolicy(name string, p schemas.RetryPolicy) error {
	if p.Limit < 0 {
		return fmt.Errorf("%s.limit must not be negative; zero means unbounded", name)
	}
	if p.Delay <= 0 {
		return fmt.Errorf("%s.delay must be a positive duration", name)
	}
	if p.LogEvery < 0 {
		return fmt.Errorf("%s.log_every must not be negative", name)
	}
	return nil
}
