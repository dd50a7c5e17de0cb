// Package config holds the settings of a todocheck run.
//
// Settings come from defaults, then an optional YAML file, then command-line
// flags; the CLI applies the flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver kinds.
const (
	DriverInProc = "inproc"
	DriverChrome = "chrome"
)

// Storage backends for the in-process application.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config is one run's settings.
type Config struct {
	// Driver selects the system under test: the in-process app or Chrome.
	Driver string `yaml:"driver"`

	// BaseURL is the application origin for the chrome driver.
	BaseURL string `yaml:"base_url"`

	// RemoteURL is a DevTools websocket; empty starts a headless Chrome.
	RemoteURL string `yaml:"remote_url,omitempty"`

	// Timeout bounds every assertion and actionability wait.
	Timeout time.Duration `yaml:"timeout"`

	// Poll is the retry interval.
	Poll time.Duration `yaml:"poll"`

	// Storage backs the in-process app.
	Storage   string `yaml:"storage"`
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// Latency delays each in-process re-render.
	Latency time.Duration `yaml:"latency,omitempty"`

	// DB records run history when set. The sqlite storage backend uses it too.
	DB string `yaml:"db,omitempty"`

	// MetricsFile receives Prometheus samples after the run when set.
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// Filter restricts the run to matching case names.
	Filter string `yaml:"filter,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Driver:  DriverInProc,
		BaseURL: "http://localhost:8888/",
		Timeout: 4 * time.Second,
		Poll:    50 * time.Millisecond,
		Storage: StorageMemory,
	}
}

// Load reads path over the defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Driver {
	case DriverInProc, DriverChrome:
	default:
		errs = append(errs, fmt.Errorf("driver: must be %s or %s, got %q", DriverInProc, DriverChrome, c.Driver))
	}
	if c.Driver == DriverChrome {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("base_url: %q is not an absolute URL", c.BaseURL))
		}
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout: must be positive"))
	}
	if c.Poll <= 0 {
		errs = append(errs, errors.New("poll: must be positive"))
	} else if c.Timeout > 0 && c.Poll > c.Timeout {
		errs = append(errs, errors.New("poll: must not exceed timeout"))
	}
	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if c.DB == "" {
			errs = append(errs, errors.New("storage: sqlite needs db"))
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("storage: redis needs redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: must be memory, sqlite or redis, got %q", c.Storage))
	}
	if c.Latency < 0 {
		errs = append(errs, errors.New("latency: must not be negative"))
	}
	return errors.Join(errs...)
}
