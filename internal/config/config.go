// ABOUTME: Configuration loading for coven-migrate from YAML or TOML files
// ABOUTME: Handles env var expansion, duration parsing, defaults and validation

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-migrate/internal/auth"
)

// Defaults applied when a field is left empty
const (
	DefaultDriver      = "sqlite"
	DefaultDialTimeout = 10 * time.Second
	DefaultTokenTTL    = time.Hour
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config represents the complete coven-migrate configuration
type Config struct {
	Workspace  string           `yaml:"workspace" toml:"workspace"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Transactor TransactorConfig `yaml:"transactor" toml:"transactor"`
	Auth       AuthConfig       `yaml:"auth" toml:"auth"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Migration  MigrationConfig  `yaml:"migration" toml:"migration"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds the domain store configuration.
// Path serves every domain not listed in Routes.
type DatabaseConfig struct {
	Driver string            `yaml:"driver" toml:"driver"`
	Path   string            `yaml:"path" toml:"path"`
	Routes map[string]string `yaml:"routes" toml:"routes"`
}

// TransactorConfig locates the running workspace instance
type TransactorConfig struct {
	URL     string `yaml:"url" toml:"url"`
	HTTPURL string `yaml:"http_url" toml:"http_url"`

	DialTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	DialTimeoutRaw string `yaml:"dial_timeout" toml:"dial_timeout"`
}

// AuthConfig holds the service token settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`

	TokenTTL time.Duration `yaml:"-" toml:"-"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	BucketRoot string `yaml:"bucket_root" toml:"bucket_root"`
}

// MigrationConfig holds flags for an upgrade run
type MigrationConfig struct {
	SkipTxUpdate        bool     `yaml:"skip_tx_update" toml:"skip_tx_update"`
	ForceIndexes        bool     `yaml:"force_indexes" toml:"force_indexes"`
	PreserveClasses     []string `yaml:"preserve_classes" toml:"preserve_classes"`
	InitPreserveClasses []string `yaml:"init_preserve_classes" toml:"init_preserve_classes"`
	LogFile             string   `yaml:"log_file" toml:"log_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "text" or "json"
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Transactor.DialTimeout == 0 {
		c.Transactor.DialTimeout = DefaultDialTimeout
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Database.Driver {
	case "", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite or sqlite3)", c.Database.Driver)
	}
	for domain, path := range c.Database.Routes {
		if path == "" {
			return fmt.Errorf("database.routes.%s has an empty path", domain)
		}
	}

	if c.Transactor.URL != "" {
		u, err := url.Parse(c.Transactor.URL)
		if err != nil {
			return fmt.Errorf("transactor.url is not a valid URL: %w", err)
		}
		switch u.Scheme {
		case "ws", "wss", "http", "https", "grpc":
		default:
			return fmt.Errorf("transactor.url must use ws, wss, http, https or grpc scheme")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required when transactor.url is set")
		}
	}
	if c.Transactor.HTTPURL != "" {
		u, err := url.Parse(c.Transactor.HTTPURL)
		if err != nil {
			return fmt.Errorf("transactor.http_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("transactor.http_url must use http or https scheme")
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use text or json)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Transactor.DialTimeoutRaw != "" {
		cfg.Transactor.DialTimeout, err = time.ParseDuration(cfg.Transactor.DialTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing dial_timeout %q: %w", cfg.Transactor.DialTimeoutRaw, err)
		}
	}

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	return nil
}
