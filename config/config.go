// Package config loads the predator configuration from YAML.
//
// Zero values are replaced by defaults before validation, so a minimal file
// (or none at all) yields a runnable in-memory setup:
//
//	store:
//	  driver: sqlite
//	  dsn: predator.db
//	remotes:
//	  - name: market_oracle
//	    base_url: http://localhost:8001
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/predator/logging"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Oracle providers.
const (
	ProviderPlaybook  = "playbook"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the root configuration.
type Config struct {
	Runner     RunnerConfig     `yaml:"runner"`
	Compaction CompactionConfig `yaml:"compaction"`
	Store      StoreConfig      `yaml:"store"`
	Remote     RemoteConfig     `yaml:"remote"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Remotes    []RemoteAgent    `yaml:"remotes"`
}

// RunnerConfig configures the orchestrator.
type RunnerConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

// CompactionConfig configures log compaction. Interval is the number of
// turns that must be eligible before a compaction runs; Overlap is the
// number of newest turns that are never replaced.
type CompactionConfig struct {
	Disabled bool `yaml:"disabled"`
	Interval int  `yaml:"interval"`
	Overlap  int  `yaml:"overlap"`
}

// StoreConfig selects the event log.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite
	DSN    string `yaml:"dsn"`
}

// RemoteConfig configures the remote agent client.
type RemoteConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    uint          `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	CacheSize      int           `yaml:"cache_size"`
}

// ServerConfig configures the remote agent server.
type ServerConfig struct {
	Address string `yaml:"address"`
	// PublicURL is the base URL advertised in the descriptor. Defaults to
	// http://<address>.
	PublicURL string `yaml:"public_url"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// OracleConfig selects the decision oracle.
type OracleConfig struct {
	Provider string `yaml:"provider"` // playbook, openai, anthropic
	Model    string `yaml:"model"`
	Persona  string `yaml:"persona"`
}

// RemoteAgent is a peer agent reachable at BaseURL.
type RemoteAgent struct {
	Name        string `yaml:"name"`
	BaseURL     string `yaml:"base_url"`
	Description string `yaml:"description"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads and validates the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates YAML data.
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Runner.MaxSteps == 0 {
		c.Runner.MaxSteps = 25
	}
	if c.Compaction.Interval == 0 {
		c.Compaction.Interval = 4
	}
	if c.Compaction.Overlap == 0 {
		c.Compaction.Overlap = 1
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Store.Driver == DriverSQLite && c.Store.DSN == "" {
		c.Store.DSN = "predator.db"
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = 10 * time.Second
	}
	if c.Remote.MaxAttempts == 0 {
		c.Remote.MaxAttempts = 3
	}
	if c.Remote.InitialBackoff == 0 {
		c.Remote.InitialBackoff = 200 * time.Millisecond
	}
	if c.Remote.MaxBackoff == 0 {
		c.Remote.MaxBackoff = 2 * time.Second
	}
	if c.Remote.CacheSize == 0 {
		c.Remote.CacheSize = 64
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost:8001"
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://" + c.Server.Address
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = ProviderPlaybook
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.Runner.MaxSteps < 0 {
		errs = append(errs, errors.New("runner.max_steps must not be negative"))
	}
	if c.Compaction.Interval < 1 {
		errs = append(errs, errors.New("compaction.interval must be at least 1"))
	}
	if c.Compaction.Overlap < 0 {
		errs = append(errs, errors.New("compaction.overlap must not be negative"))
	}

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}

	if c.Remote.Timeout < 0 {
		errs = append(errs, errors.New("remote.timeout must not be negative"))
	}
	if c.Remote.MaxBackoff < c.Remote.InitialBackoff {
		errs = append(errs, errors.New("remote.max_backoff must not be smaller than remote.initial_backoff"))
	}
	if c.Remote.CacheSize < 1 {
		errs = append(errs, errors.New("remote.cache_size must be at least 1"))
	}

	if _, err := url.ParseRequestURI(c.Server.PublicURL); err != nil {
		errs = append(errs, fmt.Errorf("server.public_url: %w", err))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not supported", c.Logging.Format))
	}

	switch c.Oracle.Provider {
	case ProviderPlaybook, ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("oracle.provider %q is not supported", c.Oracle.Provider))
	}

	seen := make(map[string]bool, len(c.Remotes))
	for i, r := range c.Remotes {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("remotes[%d].name is required", i))
		} else if seen[r.Name] {
			errs = append(errs, fmt.Errorf("remotes[%d].name %q is duplicated", i, r.Name))
		}
		seen[r.Name] = true
		if u, err := url.Parse(r.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("remotes[%d].base_url %q is not an absolute URL", i, r.BaseURL))
		}
	}

	return errors.Join(errs...)
}
