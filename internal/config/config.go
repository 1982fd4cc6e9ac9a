package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets in the config file.
const (
	EnvControllerToken = "VNSYNC_CONTROLLER_TOKEN"
	EnvDatabaseDSN     = "VNSYNC_DATABASE_DSN"
)

// MemoryURL selects the in-process controller or store.
const MemoryURL = "memory://"

// Config is the root daemon configuration.
type Config struct {
	// Namespace is stamped on every controller object vnsync owns. Full-sync
	// only considers objects in this namespace.
	Namespace string `yaml:"namespace"`

	Controller ControllerConfig `yaml:"controller"`
	Database   DatabaseConfig   `yaml:"database"`
	Naming     NamingConfig     `yaml:"naming"`
	Sync       SyncConfig       `yaml:"sync"`
	NATS       NATSConfig       `yaml:"nats"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	Capabilities Capabilities `yaml:"capabilities"`
}

// ControllerConfig configures the SDN controller API client.
type ControllerConfig struct {
	URL   string  `yaml:"url"`
	Token string  `yaml:"token"`
	QPS   float32 `yaml:"qps"`
	Burst int     `yaml:"burst"`
}

// DatabaseConfig configures the platform database connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NamingConfig holds the controller defaults used for canonical names.
type NamingConfig struct {
	DefaultDomain  string `yaml:"default_domain"`
	DefaultProject string `yaml:"default_project"`
}

// SyncConfig configures the periodic full-sync job.
type SyncConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Parallelism int           `yaml:"parallelism"`
}

// NATSConfig configures the trigger listener. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Queue         string `yaml:"queue"`
}

// MetricsConfig configures the metrics and health endpoint.
type MetricsConfig struct {
	BindAddress string `yaml:"bind_address"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads and parses the configuration from a YAML file, applies
// defaults and environment overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data. See LoadFile.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "vnsync"
	}
	if c.Controller.URL == "" {
		c.Controller.URL = MemoryURL
	}
	if c.Controller.QPS == 0 {
		c.Controller.QPS = 20
	}
	if c.Controller.Burst == 0 {
		c.Controller.Burst = 40
	}
	if c.Database.DSN == "" {
		c.Database.DSN = MemoryURL
	}
	if c.Naming.DefaultDomain == "" {
		c.Naming.DefaultDomain = "default-domain"
	}
	if c.Naming.DefaultProject == "" {
		c.Naming.DefaultProject = "default-project"
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 5 * time.Minute
	}
	if c.Sync.Parallelism == 0 {
		c.Sync.Parallelism = 4
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "vnsync"
	}
	if c.NATS.Queue == "" {
		c.NATS.Queue = "vnsync"
	}
	if c.Metrics.BindAddress == "" {
		c.Metrics.BindAddress = ":8080"
	}
	c.Capabilities.applyDefaults()
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvControllerToken); v != "" {
		c.Controller.Token = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if c.Controller.URL != MemoryURL {
		u, err := url.Parse(c.Controller.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid controller url %q", c.Controller.URL)
		}
	}
	if c.Controller.QPS < 0 || c.Controller.Burst < 0 {
		return fmt.Errorf("controller qps and burst must not be negative")
	}
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("sync interval must be at least 1s, got %s", c.Sync.Interval)
	}
	if c.Sync.Parallelism < 1 {
		return fmt.Errorf("sync parallelism must be at least 1, got %d", c.Sync.Parallelism)
	}
	if err := c.Capabilities.Validate(); err != nil {
		return fmt.Errorf("capabilities validation failed: %w", err)
	}
	return nil
}
