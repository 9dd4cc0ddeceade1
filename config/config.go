// Package config holds the dashboard configuration. Values come from
// Default(), then an optional YAML file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"fleetdash/models"
)

// Config is the full dashboard configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Map      MapConfig      `yaml:"map"`
	Follow   FollowConfig   `yaml:"follow"`
	Journal  JournalConfig  `yaml:"journal"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig is the browser-facing HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// UpstreamConfig is the tracking server connection.
type UpstreamConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteWait        time.Duration `yaml:"write_wait"`
	ReadLimit        int64         `yaml:"read_limit"`
	SendBuffer       int           `yaml:"send_buffer"`
}

// MapConfig is the initial map view.
type MapConfig struct {
	Center models.Coordinates `yaml:"center"`
	Zoom   int                `yaml:"zoom"`
}

// FollowConfig sets the re-centering cadence of Track mode.
type FollowConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// JournalConfig enables the sqlite presence journal when Path is set.
type JournalConfig struct {
	Path      string `yaml:"path"`
	QueueSize int    `yaml:"queue_size"`
}

// LogConfig controls the log file tee and level.
type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Upstream: UpstreamConfig{
			URL:              "ws://localhost:8081",
			HandshakeTimeout: 10 * time.Second,
			WriteWait:        10 * time.Second,
			ReadLimit:        1 << 20, // 1MB max message size
			SendBuffer:       16,
		},
		Map: MapConfig{
			Center: models.Coordinates{X: 45.328404, Y: 14.469973},
			Zoom:   15,
		},
		Follow:  FollowConfig{Interval: 100 * time.Millisecond},
		Journal: JournalConfig{QueueSize: 100},
		Log:     LogConfig{Dir: "log", Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// AddFlags registers overrides for the most common settings on fs,
// bound to cfg.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Server.Addr, "listen", c.Server.Addr, "address for the dashboard HTTP server")
	fs.StringVar(&c.Upstream.URL, "upstream", c.Upstream.URL, "websocket URL of the tracking server")
	fs.DurationVar(&c.Follow.Interval, "follow-interval", c.Follow.Interval, "re-centering cadence while tracking a device")
	fs.StringVar(&c.Journal.Path, "journal", c.Journal.Path, "sqlite presence journal path (disabled when empty)")
	fs.StringVar(&c.Log.Dir, "log-dir", c.Log.Dir, "directory for log files (stdout only when empty)")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug, info, warn, error")
}

// Parse builds the configuration from command-line args: defaults, then
// the file named by --config, then every flag set explicitly. Returns
// pflag.ErrHelp when help was requested.
func Parse(name string, args []string) (*Config, error) {
	var configPath string
	cfg := Default()
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	cfg.AddFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if configPath == "" {
		return cfg, nil
	}

	loaded, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	overrides := pflag.NewFlagSet(name, pflag.ContinueOnError)
	loaded.AddFlags(overrides)
	var setErr error
	flagSet.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || setErr != nil {
			return
		}
		setErr = overrides.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		return nil, fmt.Errorf("apply flag overrides: %w", setErr)
	}
	return loaded, nil
}

// Validate rejects configurations the dashboard cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Upstream.URL == "" {
		errs = append(errs, errors.New("upstream.url is required"))
	}
	if c.Follow.Interval <= 0 {
		errs = append(errs, fmt.Errorf("follow.interval must be positive, got %v", c.Follow.Interval))
	}
	if _, err := models.CheckZoom(&c.Map.Zoom); err != nil {
		errs = append(errs, fmt.Errorf("map.zoom: %w", err))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}
