// ABOUTME: Tests for SQLite store lifecycle and batching
// ABOUTME: Covers file creation, reopen persistence, batched cleanup and counts

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("database directory was not created")
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	doc := testDoc("issue-1", "task:class:Issue", map[string]any{
		"title":  "Broken build",
		"labels": []any{"ci", "urgent"},
	})
	if err := store.Upload(ctx, Domain("task"), []Doc{doc}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := store.CreateIndexes(ctx, Domain("task"), []IndexSpec{{Keys: []string{FieldClass}}}); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer reopened.Close()

	docs, err := reopened.RawFindAll(ctx, Domain("task"), Filter{"title": "Broken build"})
	if err != nil {
		t.Fatalf("RawFindAll failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc after reopen, got %d", len(docs))
	}
	if labels, _ := docs[0].Attributes["labels"].([]any); len(labels) != 2 {
		t.Errorf("labels = %v, want 2 entries", docs[0].Attributes["labels"])
	}

	names, err := reopened.ListIndexes(ctx, Domain("task"))
	if err != nil {
		t.Fatalf("ListIndexes failed: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("expected 1 index after reopen, got %v", names)
	}
}

func TestSQLiteStore_CleanInBatches(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	total := cleanBatchSize*2 + 17
	docs := make([]Doc, total)
	ids := make([]string, total)
	for i := range docs {
		ids[i] = fmt.Sprintf("tx-%04d", i)
		docs[i] = testDoc(ids[i], "core:class:Tx", nil)
	}
	if err := store.Upload(ctx, DomainTx, docs); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	count, err := store.EstimatedCount(ctx, DomainTx)
	if err != nil {
		t.Fatalf("EstimatedCount failed: %v", err)
	}
	if count != total {
		t.Fatalf("count = %d, want %d", count, total)
	}

	// Keep the last doc
	if err := store.Clean(ctx, DomainTx, ids[:total-1]); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	remaining, err := store.RawFindAll(ctx, DomainTx, nil)
	if err != nil {
		t.Fatalf("RawFindAll failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != ids[total-1] {
		t.Errorf("remaining = %v, want only %s", remaining, ids[total-1])
	}
}

func TestSQLiteStore_EmptyDomain(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	count, err := store.EstimatedCount(ctx, Domain("empty"))
	if err != nil {
		t.Fatalf("EstimatedCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	if err := store.Clean(ctx, Domain("empty"), nil); err != nil {
		t.Errorf("Clean with no ids failed: %v", err)
	}

	names, err := store.ListIndexes(ctx, Domain("empty"))
	if err != nil {
		t.Fatalf("ListIndexes failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no indexes, got %v", names)
	}
}
