package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/signals/internal/deadletter"
	"github.com/dshills/signals/internal/signal"
	"github.com/dshills/signals/internal/throttle"
)

// Config holds the service configuration.
// Zero values are replaced by Default() values in Load.
type Config struct {
	Log     LogConfig               `json:"log" yaml:"log" toml:"log"`
	Async   AsyncConfig             `json:"async" yaml:"async" toml:"async"`
	HTTP    HTTPConfig              `json:"http" yaml:"http" toml:"http"`
	Signals map[string]SignalConfig `json:"signals" yaml:"signals" toml:"signals"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// AsyncConfig sizes the worker pool shared by asynchronous sends.
type AsyncConfig struct {
	Workers   int `json:"workers" yaml:"workers" toml:"workers"`
	QueueSize int `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
}

// HTTPConfig configures the admin HTTP server.
type HTTPConfig struct {
	Enabled         bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Addr            string   `json:"addr" yaml:"addr" toml:"addr"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// SignalConfig configures one named signal. Nil sections are disabled.
type SignalConfig struct {
	Throttle         *ThrottleConfig   `json:"throttle,omitempty" yaml:"throttle,omitempty" toml:"throttle,omitempty"`
	DeadLetter       *DeadLetterConfig `json:"dead_letter,omitempty" yaml:"dead_letter,omitempty" toml:"dead_letter,omitempty"`
	History          *HistoryConfig    `json:"history,omitempty" yaml:"history,omitempty" toml:"history,omitempty"`
	Logging          bool              `json:"logging" yaml:"logging" toml:"logging"`
	Tracing          bool              `json:"tracing" yaml:"tracing" toml:"tracing"`
	Metrics          bool              `json:"metrics" yaml:"metrics" toml:"metrics"`
	RequireReceivers bool              `json:"require_receivers" yaml:"require_receivers" toml:"require_receivers"`
}

// ThrottleConfig is the file form of throttle.Config.
type ThrottleConfig struct {
	Strategy string   `json:"strategy" yaml:"strategy" toml:"strategy"`
	Limit    int      `json:"limit" yaml:"limit" toml:"limit"`
	Window   Duration `json:"window" yaml:"window" toml:"window"`
	Burst    int      `json:"burst,omitempty" yaml:"burst,omitempty" toml:"burst,omitempty"`
	Mode     string   `json:"mode" yaml:"mode" toml:"mode"`
}

// DeadLetterConfig is the file form of deadletter.Config.
type DeadLetterConfig struct {
	MaxRetries int    `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	MaxSize    int    `json:"max_size" yaml:"max_size" toml:"max_size"`
	Overflow   string `json:"overflow" yaml:"overflow" toml:"overflow"`

	// Policy is immediate, fixed, exponential or linear.
	Policy   string   `json:"policy" yaml:"policy" toml:"policy"`
	Delay    Duration `json:"delay,omitempty" yaml:"delay,omitempty" toml:"delay,omitempty"`
	MaxDelay Duration `json:"max_delay,omitempty" yaml:"max_delay,omitempty" toml:"max_delay,omitempty"`

	// Interval is how often due entries are retried.
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty" toml:"interval,omitempty"`
}

// HistoryConfig configures send recording.
type HistoryConfig struct {
	Capacity int `json:"capacity" yaml:"capacity" toml:"capacity"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Async: AsyncConfig{
			Workers:   4,
			QueueSize: 1024,
		},
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:9090",
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Signals: map[string]SignalConfig{},
	}
}

// Load reads a configuration file based on its extension and fills unset
// fields from Default. Supports .toml, .yaml/.yml and .json.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrEmptyPath
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(path, b)
}

// Parse decodes data using the format implied by path's extension.
func Parse(path string, data []byte) (Config, error) {
	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	var err error
	switch ext {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return cfg, &ParseError{Path: path, Format: strings.TrimPrefix(ext, "."), Err: err}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Async.Workers == 0 {
		c.Async.Workers = def.Async.Workers
	}
	if c.Async.QueueSize == 0 {
		c.Async.QueueSize = def.Async.QueueSize
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = def.HTTP.ShutdownTimeout
	}
	if c.Signals == nil {
		c.Signals = map[string]SignalConfig{}
	}
}

// SignalNames returns the configured signal names, sorted.
func (c Config) SignalNames() []string {
	names := make([]string, 0, len(c.Signals))
	for name := range c.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the whole configuration and returns every problem found.
func (c Config) Validate() error {
	var errs []error
	add := func(key, msg string, err error) {
		errs = append(errs, &ValidationError{Key: key, Message: msg, Err: err})
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		add("log.format", fmt.Sprintf("must be json or console, got %q", c.Log.Format), nil)
	}
	if c.Async.Workers <= 0 {
		add("async.workers", "must be positive", nil)
	}
	if c.Async.QueueSize <= 0 {
		add("async.queue_size", "must be positive", nil)
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		add("http.addr", "required when http is enabled", nil)
	}

	for _, name := range c.SignalNames() {
		sc := c.Signals[name]
		prefix := "signals." + name
		if !signal.IsBuiltin(name) {
			if err := signal.ValidateName(name); err != nil {
				add(prefix, "invalid signal name", err)
			}
		}
		if sc.Throttle != nil {
			if _, err := sc.Throttle.Build(); err != nil {
				add(prefix+".throttle", "invalid throttle", err)
			}
		}
		if sc.DeadLetter != nil {
			if _, err := sc.DeadLetter.Build(); err != nil {
				add(prefix+".dead_letter", "invalid dead letter queue", err)
			}
		}
		if sc.History != nil && sc.History.Capacity < 0 {
			add(prefix+".history.capacity", "cannot be negative", nil)
		}
	}
	return errors.Join(errs...)
}

// Build converts the section to a validated throttle.Config.
func (t ThrottleConfig) Build() (throttle.Config, error) {
	strategy, err := throttle.ParseStrategy(t.Strategy)
	if err != nil {
		return throttle.Config{}, err
	}
	mode, err := throttle.ParseMode(t.Mode)
	if err != nil {
		return throttle.Config{}, err
	}
	cfg := throttle.Config{
		Strategy: strategy,
		Limit:    t.Limit,
		Window:   t.Window.Std(),
		Burst:    t.Burst,
		Mode:     mode,
	}
	return cfg, cfg.Validate()
}

// DefaultRetryInterval is used when a dead-letter section has no interval.
const DefaultRetryInterval = time.Second

// Build converts the section to a deadletter.Config.
func (d DeadLetterConfig) Build() (deadletter.Config, error) {
	overflow, err := deadletter.ParseOverflowPolicy(d.Overflow)
	if err != nil {
		return deadletter.Config{}, err
	}
	if d.MaxSize <= 0 {
		return deadletter.Config{}, fmt.Errorf("%w: max_size must be positive", deadletter.ErrInvalidConfig)
	}
	if d.MaxRetries < 0 {
		return deadletter.Config{}, fmt.Errorf("%w: max_retries cannot be negative", deadletter.ErrInvalidConfig)
	}

	var policy deadletter.Policy
	switch d.Policy {
	case "", "immediate":
		policy = deadletter.Immediate{}
	case "fixed":
		policy = deadletter.FixedDelay{Interval: d.Delay.Std()}
	case "exponential":
		policy = deadletter.ExponentialBackoff{Base: d.Delay.Std(), Max: d.MaxDelay.Std()}
	case "linear":
		policy = deadletter.LinearBackoff{Step: d.Delay.Std(), Max: d.MaxDelay.Std()}
	default:
		return deadletter.Config{}, fmt.Errorf("%w: unknown policy %q", deadletter.ErrInvalidConfig, d.Policy)
	}

	return deadletter.Config{
		MaxRetries: d.MaxRetries,
		MaxSize:    d.MaxSize,
		Overflow:   overflow,
		Policy:     policy,
	}, nil
}

// RetryInterval returns Interval or DefaultRetryInterval.
func (d DeadLetterConfig) RetryInterval() time.Duration {
	if d.Interval > 0 {
		return d.Interval.Std()
	}
	return DefaultRetryInterval
}
