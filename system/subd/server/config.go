package server

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/saulx/selva/go-selva/system/subd/storage"
)

// Spec holds what a server runs with.
// Config contains the serializable settings loaded from a file.
type Spec struct {
	Config  *Config
	Storage *storage.Storage
	Log     *slog.Logger

	// Registerer receives the server metrics; nil means the default
	// prometheus registry.
	Registerer prometheus.Registerer
}

// Config represents the subd configuration file structure.
type Config struct {
	// Addr is the TCP address of the session protocol.
	Addr string `yaml:"addr"`
	// MetricsAddr serves /metrics over HTTP.  Empty means disabled.
	MetricsAddr string `yaml:"metricsAddr"`
	// DataDir holds the node database.
	DataDir string `yaml:"dataDir"`
	// InMemory keeps the node database in memory; DataDir is ignored.
	InMemory bool `yaml:"inMemory"`

	// Workers is the number of diff workers.
	Workers int `yaml:"workers"`
	// BroadcastTimeout bounds how long a commit notification waits for a
	// subscription to take it before the subscription is failed.
	BroadcastTimeout time.Duration `yaml:"broadcastTimeout"`
	// WatchBuffer is the number of commit notifications buffered per
	// subscription.
	WatchBuffer int `yaml:"watchBuffer"`
	// OutgoingBuffer is the number of messages buffered per session.
	OutgoingBuffer int `yaml:"outgoingBuffer"`
	// MaxSessions caps concurrent TCP sessions; 0 means no limit.
	MaxSessions int `yaml:"maxSessions"`
}

// LoadConfig loads a configuration file in YAML format.  Settings the
// file leaves out keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:             "127.0.0.1:7810",
		DataDir:          "subd-data",
		Workers:          4,
		BroadcastTimeout: DefaultBroadcastTimeout,
		WatchBuffer:      16,
		OutgoingBuffer:   100,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DataDir == "" && !c.InMemory {
		errs = append(errs, errors.New("dataDir is required unless inMemory is set"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.BroadcastTimeout <= 0 {
		errs = append(errs, fmt.Errorf("broadcastTimeout must be positive, got %s", c.BroadcastTimeout))
	}
	if c.WatchBuffer < 1 {
		errs = append(errs, fmt.Errorf("watchBuffer must be at least 1, got %d", c.WatchBuffer))
	}
	if c.OutgoingBuffer < 1 {
		errs = append(errs, fmt.Errorf("outgoingBuffer must be at least 1, got %d", c.OutgoingBuffer))
	}
	if c.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("maxSessions must not be negative, got %d", c.MaxSessions))
	}
	if len(errs) != 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
