package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"Go2TraceSpectra/internal/core/model"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultSampleSize is the number of flow events kept for reporting when unset.
const DefaultSampleSize = 10

// EndpointGroupDef binds a logical group name to its addresses.
type EndpointGroupDef struct {
	Name      string   `yaml:"name"`
	Addresses []string `yaml:"addresses"`
}

// SignatureDef is one protocol-characteristic packet size.
type SignatureDef struct {
	Name   string `yaml:"name"`
	Length int    `yaml:"length"`
}

// EngineConfig is everything the classification engine consumes.
type EngineConfig struct {
	ServicePort    int                `yaml:"service_port"`
	SampleSize     int                `yaml:"sample_size"`
	NumWorkers     int                `yaml:"num_workers"`
	FlowShards     int                `yaml:"flow_shards"`
	Filter         string             `yaml:"filter"`
	EndpointGroups []EndpointGroupDef `yaml:"endpoint_groups"`
	Signatures     []SignatureDef     `yaml:"signatures"`
}

// ClickHouseConfig holds connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SQLiteConfig holds settings for the SQLite report store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// WriterDef defines a single report writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Path       string           `yaml:"path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
}

// ProbeConfig holds the NATS live feed settings.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// APIConfig holds the API server settings.
type APIConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	GRPCAddr      string `yaml:"grpc_addr"`
	HistorySource string `yaml:"history_source"`
}

// AlerterRule defines a threshold on one group metric of a report.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Group     string  `yaml:"group"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the alerter settings.
type AlerterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Rules   []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the settings of the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	LogLevel         string        `yaml:"log_level"`
	Engine           EngineConfig  `yaml:"engine"`
	SnapshotInterval string        `yaml:"snapshot_interval"`
	Writers          []WriterDef   `yaml:"writers"`
	Probe            ProbeConfig   `yaml:"probe"`
	API              APIConfig     `yaml:"api"`
	Alerter          AlerterConfig `yaml:"alerter"`
	SMTP             SMTPConfig    `yaml:"smtp"`
}

// LoadConfig reads the configuration from a YAML file, applies defaults and validates it.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and rejects configurations the engine cannot run with.
// Address uniqueness across groups is checked when the registry is built.
func (c *Config) Validate() error {
	e := &c.Engine
	if e.ServicePort <= 0 || e.ServicePort > 65535 {
		return fmt.Errorf("%w: service_port must be in 1..65535, got %d", model.ErrConfig, e.ServicePort)
	}
	if len(e.EndpointGroups) == 0 {
		return fmt.Errorf("%w: endpoint_groups must not be empty", model.ErrConfig)
	}
	if e.SampleSize < 0 {
		return fmt.Errorf("%w: sample_size must not be negative", model.ErrConfig)
	}
	if e.SampleSize == 0 {
		e.SampleSize = DefaultSampleSize
	}
	if e.NumWorkers <= 0 {
		e.NumWorkers = 1
	}
	if e.FlowShards <= 0 {
		e.FlowShards = 1
	}

	names := make(map[string]bool, len(e.Signatures))
	for _, sig := range e.Signatures {
		if sig.Name == "" {
			return fmt.Errorf("%w: signature with length %d has no name", model.ErrConfig, sig.Length)
		}
		if sig.Length <= 0 {
			return fmt.Errorf("%w: signature '%s' must have a positive length", model.ErrConfig, sig.Name)
		}
		if names[sig.Name] {
			return fmt.Errorf("%w: duplicate signature name '%s'", model.ErrConfig, sig.Name)
		}
		names[sig.Name] = true
	}

	if c.SnapshotInterval != "" {
		if _, err := time.ParseDuration(c.SnapshotInterval); err != nil {
			return fmt.Errorf("%w: invalid snapshot_interval: %v", model.ErrConfig, err)
		}
	}
	return nil
}

// Interval returns the snapshot interval, defaulting to 30 seconds.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.SnapshotInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SetupLogging applies the configured log level to the global logger.
func (c *Config) SetupLogging() {
	level, err := log.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
