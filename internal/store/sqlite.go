// ABOUTME: SQLite implementation of DomainAdapter using one table per domain
// ABOUTME: Rows carry fixed document columns plus a JSON attribute blob

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Driver names accepted by NewSQLiteStoreWithDriver
const (
	DriverModernc = "sqlite"  // pure Go, always available
	DriverMattn   = "sqlite3" // cgo, available when built with cgo
)

// cleanBatchSize bounds the number of placeholders in a single DELETE
const cleanBatchSize = 500

var domainPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// columns maps document fields to their dedicated columns
var columns = map[string]string{
	FieldID:         "id",
	FieldClass:      "class",
	FieldSpace:      "space",
	FieldModifiedBy: "modified_by",
	FieldModifiedOn: "modified_on",
}

// SQLiteStore implements DomainAdapter using SQLite
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	tables map[Domain]bool
}

// NewSQLiteStore creates a new SQLite store at the given path using the pure Go driver.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDriver(DriverModernc, path)
}

// NewSQLiteStoreWithDriver opens a store with an explicit database/sql driver name.
func NewSQLiteStoreWithDriver(driver, path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if driver == "" {
		driver = DriverModernc
	}

	if path != ":memory:" {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
		tables: make(map[Domain]bool),
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store", "path", s.path)
	return s.db.Close()
}

// tableName maps a domain to its table, rejecting names that are not plain identifiers
func tableName(domain Domain) (string, error) {
	if !domainPattern.MatchString(string(domain)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	return "d_" + string(domain), nil
}

// ensureTable creates the domain table on first use
func (s *SQLiteStore) ensureTable(ctx context.Context, domain Domain) (string, error) {
	table, err := tableName(domain)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[domain] {
		return table, nil
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			class       TEXT NOT NULL,
			space       TEXT NOT NULL,
			modified_by TEXT NOT NULL,
			modified_on INTEGER NOT NULL,
			attributes  TEXT NOT NULL DEFAULT '{}'
		)`, table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return "", fmt.Errorf("creating table for domain %s: %w", domain, err)
	}

	s.tables[domain] = true
	s.logger.Debug("domain table ready", "domain", domain, "table", table)
	return table, nil
}

// keyExpr returns the SQL expression addressing a filter key
func keyExpr(key string) (string, error) {
	if col, ok := columns[key]; ok {
		return col, nil
	}
	if !validKey(key) {
		return "", fmt.Errorf("invalid attribute key %q", key)
	}
	return fmt.Sprintf("json_extract(attributes, '$.%s')", key), nil
}

// whereClause renders a filter into a WHERE clause with positional args
func whereClause(filter Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	var parts []string
	var args []any
	for _, key := range filter.Keys() {
		expr, err := keyExpr(key)
		if err != nil {
			return "", nil, err
		}

		switch c := filter[key].(type) {
		case Cond:
			if len(c.Values) == 0 {
				if c.Op == OpIn {
					parts = append(parts, "0")
				}
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(c.Values)), ",")
			switch c.Op {
			case OpIn:
				parts = append(parts, fmt.Sprintf("%s IN (%s)", expr, placeholders))
			case OpNotIn:
				parts = append(parts, fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", expr, expr, placeholders))
			default:
				return "", nil, fmt.Errorf("unsupported operator %s", c.Op)
			}
			for _, v := range c.Values {
				args = append(args, sqlValue(v))
			}
		default:
			parts = append(parts, expr+" = ?")
			args = append(args, sqlValue(c))
		}
	}

	if len(parts) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// sqlValue converts values to what json_extract yields for comparison
func sqlValue(v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case time.Time:
		return t.UnixMilli()
	}
	return v
}

// RawFindAll returns the rows of a domain matching filter, in insertion order
func (s *SQLiteStore) RawFindAll(ctx context.Context, domain Domain, filter Filter) ([]Doc, error) {
	table, err := s.ensureTable(ctx, domain)
	if err != nil {
		return nil, err
	}

	where, args, err := whereClause(filter)
	if err != nil {
		return nil, fmt.Errorf("building filter for domain %s: %w", domain, err)
	}

	query := fmt.Sprintf(`
		SELECT id, class, space, modified_by, modified_on, attributes
		FROM %s%s
		ORDER BY rowid ASC
	`, table, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying domain %s: %w", domain, err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var doc Doc
		var modifiedOn int64
		var attrs string
		if err := rows.Scan(&doc.ID, &doc.Class, &doc.Space, &doc.ModifiedBy, &modifiedOn, &attrs); err != nil {
			return nil, fmt.Errorf("scanning row of domain %s: %w", domain, err)
		}
		doc.ModifiedOn = time.UnixMilli(modifiedOn).UTC()
		if err := json.Unmarshal([]byte(attrs), &doc.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes of %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating domain %s: %w", domain, err)
	}

	return docs, nil
}

// Upload inserts or replaces rows in a single transaction
func (s *SQLiteStore) Upload(ctx context.Context, domain Domain, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}

	table, err := s.ensureTable(ctx, domain)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, class, space, modified_by, modified_on, attributes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			class = excluded.class,
			space = excluded.space,
			modified_by = excluded.modified_by,
			modified_on = excluded.modified_on,
			attributes = excluded.attributes
	`, table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upload: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		attrs := doc.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("encoding attributes of %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			doc.ID,
			doc.Class,
			doc.Space,
			doc.ModifiedBy,
			doc.ModifiedOn.UnixMilli(),
			string(encoded),
		); err != nil {
			return fmt.Errorf("inserting %s into domain %s: %w", doc.ID, domain, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upload: %w", err)
	}

	s.logger.Debug("uploaded documents", "domain", domain, "count", len(docs))
	return nil
}

// Clean deletes rows by ID in batches
func (s *SQLiteStore) Clean(ctx context.Context, domain Domain, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	table, err := s.ensureTable(ctx, domain)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(ids); start += cleanBatchSize {
		end := min(start+cleanBatchSize, len(ids))
		batch := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", table, placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deleting from domain %s: %w", domain, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	s.logger.Debug("cleaned documents", "domain", domain, "count", len(ids))
	return nil
}

// EstimatedCount returns the row count of a domain.
// SQLite has no cheap estimate, so this is exact.
func (s *SQLiteStore) EstimatedCount(ctx context.Context, domain Domain) (int, error) {
	table, err := s.ensureTable(ctx, domain)
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting domain %s: %w", domain, err)
	}
	return count, nil
}

// CreateIndexes creates each index if it does not already exist
func (s *SQLiteStore) CreateIndexes(ctx context.Context, domain Domain, specs []IndexSpec) error {
	table, err := s.ensureTable(ctx, domain)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		if len(spec.Keys) == 0 {
			continue
		}
		exprs := make([]string, len(spec.Keys))
		for i, key := range spec.Keys {
			expr, err := keyExpr(key)
			if err != nil {
				return fmt.Errorf("index on domain %s: %w", domain, err)
			}
			exprs[i] = expr
		}

		query := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
			spec.Name(domain), table, strings.Join(exprs, ", "))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("creating index %s: %w", spec.Name(domain), err)
		}
	}

	return nil
}

// ListIndexes returns the names of the indexes created through CreateIndexes
func (s *SQLiteStore) ListIndexes(ctx context.Context, domain Domain) ([]string, error) {
	table, err := s.ensureTable(ctx, domain)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND tbl_name = ? AND name LIKE 'idx_%'
		ORDER BY name
	`, table)
	if err != nil {
		return nil, fmt.Errorf("listing indexes of domain %s: %w", domain, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning index name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
