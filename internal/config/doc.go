// Package config handles configuration loading for coven-migrate.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The format follows the file extension: ".toml" selects TOML,
// anything else is parsed as YAML.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_MIGRATE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/migrate.yaml
//  3. ~/.config/coven/migrate.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COVEN_JWT_SECRET}"
//
// Unset variables expand to an empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	transactor:
//	  dial_timeout: "10s"
//	auth:
//	  token_ttl: "1h"
//
// # Configuration Sections
//
//	workspace: "acme"
//
//	database:
//	  driver: "sqlite"          # or "sqlite3" when built with cgo
//	  path: "./data/acme.db"
//	  routes:                   # optional per-domain databases
//	    tx: "./data/acme-tx.db"
//
//	transactor:
//	  url: "ws://localhost:3333"
//	  http_url: "http://localhost:3333"
//
//	storage:
//	  bucket_root: "./data/buckets"
//
//	migration:
//	  skip_tx_update: false
//	  force_indexes: false
//	  preserve_classes: ["contact:class:Person"]
//	  init_preserve_classes: ["contact:class:PersonAccount"]
//	  log_file: "./migrate.log"
//
//	logging:
//	  level: "info"             # debug, info, warn, error
//	  format: "text"            # text or json
//
// # Validation
//
// Load validates the result: workspace and database.path are required, the
// transactor URLs must use a supported scheme, and a transactor URL requires
// an auth.jwt_secret of at least 32 bytes.
package config
