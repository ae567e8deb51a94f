// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Harvest HarvestConfig `mapstructure:"harvest" yaml:"harvest"`
}

// LoggerConfig controls the zap logger bootstrap.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the headless browser process.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// HarvestConfig mirrors the convergence loop knobs. The harvest package owns
// the authoritative defaults; this struct is just the file/env/flag surface.
type HarvestConfig struct {
	MaxSteps      int           `mapstructure:"max_steps" yaml:"max_steps"`
	ScrollStepPx  int           `mapstructure:"scroll_step_px" yaml:"scroll_step_px"`
	ScrollWait    time.Duration `mapstructure:"scroll_wait" yaml:"scroll_wait"`
	InitialWait   time.Duration `mapstructure:"initial_wait" yaml:"initial_wait"`
	StableChecks  int           `mapstructure:"stable_checks" yaml:"stable_checks"`
	ReverseOutput bool          `mapstructure:"reverse_output" yaml:"reverse_output"`
}

// SetDefaults fills in anything the file, environment and flags left unset.
func (c *Config) SetDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if c.Logger.ServiceName == "" {
		c.Logger.ServiceName = "cosmos-scraper"
	}
	if c.Logger.MaxSize <= 0 {
		c.Logger.MaxSize = 50 // megabytes
	}
	if c.Logger.MaxBackups <= 0 {
		c.Logger.MaxBackups = 3
	}
	if c.Logger.MaxAge <= 0 {
		c.Logger.MaxAge = 14 // days
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = 1280
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = 2000
	}
	if c.Browser.NavigationTimeout <= 0 {
		c.Browser.NavigationTimeout = 45 * time.Second
	}
}

// Load unmarshals the merged viper state (file, env, bound flags) into a
// Config and applies defaults. Paths get tilde expansion so log files can
// live under the invoking user's home.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()

	if cfg.Logger.LogFile != "" {
		expanded, err := ExpandPath(cfg.Logger.LogFile)
		if err != nil {
			return nil, fmt.Errorf("invalid log_file path: %w", err)
		}
		cfg.Logger.LogFile = expanded
	}
	return &cfg, nil
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	return homedir.Expand(p)
}
