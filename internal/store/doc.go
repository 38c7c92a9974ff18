// Package store provides raw, domain-partitioned storage for a workspace.
//
// # Architecture
//
// A workspace is split into named domains. Each domain holds documents with a
// fixed set of columns (id, class, space, modified_by, modified_on) plus a JSON
// attribute blob. Storage engines implement DomainAdapter:
//
//   - RawFindAll: scan a domain with a Filter
//   - Upload: insert or replace by ID
//   - Clean: delete by ID set
//   - EstimatedCount: row count estimate, used to pick an index strategy
//   - CreateIndexes / ListIndexes: index maintenance
//
// AdapterManager routes domains to adapters. A domain with no route falls back
// to the default adapter; with no default it has no adapter at all, which
// callers treat as a configuration defect (ErrAdapterNotFound).
//
// # Reserved Domains
//
//   - model: the installed model transaction log
//   - transient, benchmark: never migrated or indexed
//   - migration: migration state markers (plugin, state)
//   - tx: the workspace transaction log
//
// # SQLite Configuration
//
// SQLiteStore keeps one table per domain named d_<domain>, created on first use:
//
//	PRAGMA journal_mode=WAL;
//
// Two drivers are supported: "sqlite" (modernc.org/sqlite, pure Go, default) and
// "sqlite3" (github.com/mattn/go-sqlite3, only when built with cgo).
//
// # Filters
//
// Filter keys address either a document column (_id, _class, space, modifiedBy,
// modifiedOn) or a top-level attribute. Values are matched by equality, or by
// set membership with In / NotIn. NotIn also matches rows missing the key.
//
// # Testing
//
// Use NewMockStore() for unit tests:
//
//	s := store.NewMockStore()
//	// s implements DomainAdapter and records index checks
//
// Use NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for integration tests.
package store
