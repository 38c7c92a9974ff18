//go:build cgo

// ABOUTME: Registers the cgo SQLite driver when the binary is built with cgo
// ABOUTME: Selected with database.driver = "sqlite3" in the config

package store

import (
	_ "github.com/mattn/go-sqlite3"
)
