// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "migrate.yaml", `
workspace: "acme"

database:
  driver: "sqlite"
  path: "./acme.db"
  routes:
    tx: "./acme-tx.db"

transactor:
  url: "ws://localhost:3333"
  http_url: "http://localhost:3333"
  dial_timeout: "3s"

auth:
  jwt_secret: "`+testSecret+`"
  token_ttl: "15m"

storage:
  bucket_root: "./buckets"

migration:
  skip_tx_update: true
  force_indexes: true
  preserve_classes:
    - "contact:class:Person"
  init_preserve_classes:
    - "contact:class:EmployeeAccount"
  log_file: "./migrate.log"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Workspace)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "./acme.db", cfg.Database.Path)
	assert.Equal(t, map[string]string{"tx": "./acme-tx.db"}, cfg.Database.Routes)
	assert.Equal(t, "ws://localhost:3333", cfg.Transactor.URL)
	assert.Equal(t, "http://localhost:3333", cfg.Transactor.HTTPURL)
	assert.Equal(t, 3*time.Second, cfg.Transactor.DialTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "./buckets", cfg.Storage.BucketRoot)
	assert.True(t, cfg.Migration.SkipTxUpdate)
	assert.True(t, cfg.Migration.ForceIndexes)
	assert.Equal(t, []string{"contact:class:Person"}, cfg.Migration.PreserveClasses)
	assert.Equal(t, []string{"contact:class:EmployeeAccount"}, cfg.Migration.InitPreserveClasses)
	assert.Equal(t, "./migrate.log", cfg.Migration.LogFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "migrate.toml", `
workspace = "acme"

[database]
driver = "sqlite3"
path = "./acme.db"

[database.routes]
tx = "./acme-tx.db"

[transactor]
url = "grpc://localhost:50051"
dial_timeout = "2s"

[auth]
jwt_secret = "`+testSecret+`"

[migration]
preserve_classes = ["contact:class:PersonAccount"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Workspace)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "./acme-tx.db", cfg.Database.Routes["tx"])
	assert.Equal(t, "grpc://localhost:50051", cfg.Transactor.URL)
	assert.Equal(t, 2*time.Second, cfg.Transactor.DialTimeout)
	assert.Equal(t, DefaultTokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"contact:class:PersonAccount"}, cfg.Migration.PreserveClasses)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "migrate.yaml", `
workspace: "acme"
database:
  path: "./acme.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
	assert.Equal(t, DefaultDialTimeout, cfg.Transactor.DialTimeout)
	assert.Equal(t, DefaultTokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Empty(t, cfg.Transactor.URL)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("COVEN_TEST_WORKSPACE", "from-env")
	t.Setenv("COVEN_TEST_SECRET", testSecret)

	path := writeConfig(t, "migrate.yaml", `
workspace: "${COVEN_TEST_WORKSPACE}"
database:
  path: "./db.sqlite"
transactor:
  url: "ws://localhost:3333"
auth:
  jwt_secret: "${COVEN_TEST_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Workspace)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
}

func TestExpandEnvVars_Unset(t *testing.T) {
	assert.Equal(t, "a--b", expandEnvVars("a-${COVEN_TEST_DEFINITELY_UNSET}-b"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "migrate.yaml", "workspace: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "migrate.yaml", `
workspace: "acme"
database:
  path: "./acme.db"
transactor:
  dial_timeout: "soon"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial_timeout")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Workspace: "acme",
			Database:  DatabaseConfig{Driver: "sqlite", Path: "./acme.db"},
			Transactor: TransactorConfig{
				URL:     "wss://example.com",
				HTTPURL: "https://example.com",
			},
			Auth:    AuthConfig{JWTSecret: testSecret},
			Logging: LoggingConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing workspace", mutate: func(c *Config) { c.Workspace = "" }, wantErr: "workspace is required"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "postgres" }, wantErr: "database.driver"},
		{name: "empty route", mutate: func(c *Config) { c.Database.Routes = map[string]string{"tx": ""} }, wantErr: "database.routes.tx"},
		{name: "bad transactor scheme", mutate: func(c *Config) { c.Transactor.URL = "ftp://example.com" }, wantErr: "transactor.url"},
		{name: "bad http scheme", mutate: func(c *Config) { c.Transactor.HTTPURL = "ws://example.com" }, wantErr: "transactor.http_url"},
		{name: "transactor without secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "auth.jwt_secret is required"},
		{name: "short secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, wantErr: "at least 32 bytes"},
		{name: "offline without secret", mutate: func(c *Config) {
			c.Transactor = TransactorConfig{}
			c.Auth.JWTSecret = ""
		}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
