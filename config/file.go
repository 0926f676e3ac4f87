package config

import (
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// Source loader types
const (
	SourcesFile   = "file"
	SourcesSQLite = "sqlite"
)

// Config is the resolved configuration of the pipeline.
type Config struct {
	DataDir string `yaml:"data_dir"`

	Sources struct {
		Type string `yaml:"type"` // "file" or "sqlite"
		DSN  string `yaml:"dsn"`  // empty: <data_dir>/sources/sources.json
	} `yaml:"sources"`

	// Metadata holds the run ledger. An empty DSN disables it.
	Metadata struct {
		DSN string `yaml:"dsn"`
	} `yaml:"metadata"`

	Fetch struct {
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"fetch"`

	API struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"api"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	cfg := &Config{DataDir: "data"}
	cfg.Sources.Type = SourcesFile
	cfg.Fetch.Timeout = 30 * time.Second
	cfg.Fetch.UserAgent = "oppfeed/1.0"
	cfg.API.ListenAddr = "localhost:8080"
	cfg.Log.Level = "info"
	return cfg
}

// LoadConfigFile reads a YAML config file. Returns nil if the file doesn't
// exist (not an error). Returns error if the file exists but cannot be
// parsed.
func LoadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load resolves the configuration: defaults, then the YAML file at path (if
// present), then OPPFEED_* environment variables. A .env file in the working
// directory is loaded into the environment first when one exists.
func Load(path string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default()
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field values that the rest of the program relies on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("invalid config: data_dir must not be empty")
	}
	if c.Sources.Type != SourcesFile && c.Sources.Type != SourcesSQLite {
		return fmt.Errorf("invalid config: sources.type must be %q or %q, got %q",
			SourcesFile, SourcesSQLite, c.Sources.Type)
	}
	if c.Sources.Type == SourcesSQLite && c.Sources.DSN == "" {
		return fmt.Errorf("invalid config: sources.dsn is required for sqlite sources")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("invalid config: fetch.timeout must be positive")
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.DataDir = getEnv("OPPFEED_DATA_DIR", c.DataDir)
	c.Sources.Type = getEnv("OPPFEED_SOURCES_TYPE", c.Sources.Type)
	c.Sources.DSN = getEnv("OPPFEED_SOURCES_DSN", c.Sources.DSN)
	c.Metadata.DSN = getEnv("OPPFEED_METADATA_DSN", c.Metadata.DSN)
	c.Fetch.UserAgent = getEnv("OPPFEED_USER_AGENT", c.Fetch.UserAgent)
	c.API.ListenAddr = getEnv("OPPFEED_LISTEN_ADDR", c.API.ListenAddr)
	c.Log.Level = getEnv("OPPFEED_LOG_LEVEL", c.Log.Level)

	if value := os.Getenv("OPPFEED_FETCH_TIMEOUT"); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid OPPFEED_FETCH_TIMEOUT: %w", err)
		}
		c.Fetch.Timeout = d
	}

	return nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
