// Package config loads flowrec settings from a YAML file, FLOWREC_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. FLOWREC_SERVER_ADDR.
const EnvPrefix = "FLOWREC"

// Config is the full application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Debugger DebuggerConfig `mapstructure:"debugger" yaml:"debugger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Export   ExportConfig   `mapstructure:"export" yaml:"export"`
}

// LoggerConfig holds all the configuration for the logger.
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

// Browser engines.
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// BrowserConfig selects and launches the browser.
type BrowserConfig struct {
	Engine   string `mapstructure:"engine" yaml:"engine"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	Stealth  bool   `mapstructure:"stealth" yaml:"stealth"`
	// RemoteURL connects to a running browser instead of launching one.
	RemoteURL string        `mapstructure:"remote_url" yaml:"remote_url"`
	StartURL  string        `mapstructure:"start_url" yaml:"start_url"`
	Bin       string        `mapstructure:"bin" yaml:"bin"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RecorderConfig tunes event grouping.
type RecorderConfig struct {
	IdleFlush    time.Duration `mapstructure:"idle_flush" yaml:"idle_flush"`
	ScrollWindow time.Duration `mapstructure:"scroll_window" yaml:"scroll_window"`
}

// DebuggerConfig tunes replay pacing.
type DebuggerConfig struct {
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	ScrollDuration time.Duration `mapstructure:"scroll_duration" yaml:"scroll_duration"`
	WaitPoll       time.Duration `mapstructure:"wait_poll" yaml:"wait_poll"`
	WaitTimeout    time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// URL is where the CLI finds a running server.
	URL string `mapstructure:"url" yaml:"url"`
}

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flowrec")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.engine", EngineRod)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.start_url", "about:blank")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.timeout", "30s")

	// -- Recorder --
	v.SetDefault("recorder.idle_flush", "500ms")
	v.SetDefault("recorder.scroll_window", "500ms")

	// -- Debugger --
	v.SetDefault("debugger.settle_delay", "100ms")
	v.SetDefault("debugger.scroll_duration", "300ms")
	v.SetDefault("debugger.wait_poll", "100ms")
	v.SetDefault("debugger.wait_timeout", "5s")

	// -- Server --
	v.SetDefault("server.addr", "127.0.0.1:7331")
	v.SetDefault("server.url", "http://127.0.0.1:7331")

	// -- Store --
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", "flowrec.db")

	// -- Export --
	v.SetDefault("export.dir", "exports")
}

// NewDefaultConfig returns the configuration with only defaults applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads path, or ./flowrec.yaml when path is empty, over the defaults
// and environment. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("flowrec")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper unmarshals and validates v.
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

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case EngineRod, EngineChromedp:
	default:
		return fmt.Errorf("browser.engine must be %q or %q, got %q", EngineRod, EngineChromedp, c.Browser.Engine)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Store.Driver)
	}
	if c.Recorder.IdleFlush <= 0 {
		return errors.New("recorder.idle_flush must be positive")
	}
	if c.Recorder.ScrollWindow <= 0 {
		return errors.New("recorder.scroll_window must be positive")
	}
	if c.Debugger.WaitPoll <= 0 || c.Debugger.WaitTimeout <= 0 {
		return errors.New("debugger.wait_poll and debugger.wait_timeout must be positive")
	}
	if c.Debugger.SettleDelay < 0 || c.Debugger.ScrollDuration < 0 {
		return errors.New("debugger delays cannot be negative")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	return nil
}
