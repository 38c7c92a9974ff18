package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testDoc(id, class string, attrs map[string]any) Doc {
	return Doc{
		ID:         id,
		Class:      class,
		Space:      "core:space:Tx",
		ModifiedBy: "core:account:System",
		ModifiedOn: time.UnixMilli(1700000000000).UTC(),
		Attributes: attrs,
	}
}

func TestSQLiteStore_UploadAndFind(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Upload(ctx, DomainTx, []Doc{
		testDoc("tx-1", "core:class:TxCreateDoc", map[string]any{"objectSpace": "core:space:Model"}),
		testDoc("tx-2", "core:class:TxCreateDoc", map[string]any{"objectSpace": "space-1"}),
	})
	require.NoError(t, err)

	all, err := store.RawFindAll(ctx, DomainTx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "tx-1", all[0].ID)
	assert.Equal(t, "tx-2", all[1].ID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), all[0].ModifiedOn)

	model, err := store.RawFindAll(ctx, DomainTx, Filter{"objectSpace": "core:space:Model"})
	require.NoError(t, err)
	require.Len(t, model, 1)
	assert.Equal(t, "tx-1", model[0].ID)
	assert.Equal(t, "core:space:Model", model[0].String("objectSpace"))
}

func TestSQLiteStore_UploadReplacesByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, DomainTx, []Doc{testDoc("a", "c", map[string]any{"v": "1"})}))
	require.NoError(t, store.Upload(ctx, DomainTx, []Doc{testDoc("b", "c", nil)}))
	require.NoError(t, store.Upload(ctx, DomainTx, []Doc{testDoc("a", "c", map[string]any{"v": "2"})}))

	docs, err := store.RawFindAll(ctx, DomainTx, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	// Replacing keeps the original position
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "2", docs[0].String("v"))
}

func TestSQLiteStore_FilterOperators(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, DomainTx, []Doc{
		testDoc("1", "contact:class:Person", map[string]any{"objectClass": "contact:class:Person"}),
		testDoc("2", "core:class:Class", map[string]any{"objectClass": "core:class:Class"}),
		testDoc("3", "core:class:Tx", nil),
	}))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "in on column", filter: Filter{FieldID: In("1", "3")}, want: []string{"1", "3"}},
		{name: "empty in matches nothing", filter: Filter{FieldID: In[string]()}, want: nil},
		{name: "not in includes missing", filter: Filter{"objectClass": NotIn("contact:class:Person")}, want: []string{"2", "3"}},
		{name: "equality on column", filter: Filter{FieldClass: "core:class:Class"}, want: []string{"2"}},
		{name: "equality on missing attribute", filter: Filter{"nope": "x"}, want: nil},
		{name: "modified by", filter: Filter{FieldModifiedBy: "core:account:System"}, want: []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := store.RawFindAll(ctx, DomainTx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSQLiteStore_Clean(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var docs []Doc
	var ids []string
	for i := 0; i < cleanBatchSize+10; i++ {
		id := fmt.Sprintf("doc-%d", i)
		docs = append(docs, testDoc(id, "c", nil))
		ids = append(ids, id)
	}
	require.NoError(t, store.Upload(ctx, DomainTx, docs))

	require.NoError(t, store.Clean(ctx, DomainTx, append(ids[1:], "unknown")))

	count, err := store.EstimatedCount(ctx, DomainTx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_Indexes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	specs := []IndexSpec{
		{Keys: []string{FieldClass}},
		{Keys: []string{"objectSpace", FieldModifiedOn}},
	}
	require.NoError(t, store.CreateIndexes(ctx, "tracker", specs))
	// Idempotent
	require.NoError(t, store.CreateIndexes(ctx, "tracker", specs))

	names, err := store.ListIndexes(ctx, "tracker")
	require.NoError(t, err)
	assert.Equal(t, []string{"idx_tracker__class", "idx_tracker_objectSpace_modifiedOn"}, names)
}

func TestIndexSpecName(t *testing.T) {
	tests := []struct {
		keys []string
		want string
	}{
		{[]string{FieldClass}, "idx_task__class"},
		{[]string{"class"}, "idx_task_class"},
		{[]string{FieldID}, "idx_task__id"},
		{[]string{"assignee", "status"}, "idx_task_assignee_status"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IndexSpec{Keys: tt.keys}.Name("task"))
	}
}

func TestSQLiteStore_ColumnAndAttributeIndexes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	specs := []IndexSpec{{Keys: []string{FieldClass}}, {Keys: []string{"class"}}}
	require.NoError(t, store.CreateIndexes(ctx, "tracker", specs))

	names, err := store.ListIndexes(ctx, "tracker")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"idx_tracker__class", "idx_tracker_class"}, names)
}

func TestSQLiteStore_InvalidDomain(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.RawFindAll(ctx, "bad domain; DROP", nil)
	assert.ErrorIs(t, err, ErrInvalidDomain)

	err = store.CreateIndexes(ctx, "tracker", []IndexSpec{{Keys: []string{"a'b"}}})
	assert.Error(t, err)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, DomainMigration, []Doc{testDoc("m", "core:class:MigrationState", nil)}))
	count, err := store.EstimatedCount(ctx, DomainMigration)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAdapterManager_Routing(t *testing.T) {
	fallback := NewMockStore()
	routed := NewMockStore()

	m := NewAdapterManager(fallback)
	m.Route(DomainTx, routed)

	a, ok := m.Adapter(DomainTx)
	require.True(t, ok)
	assert.Same(t, routed, a)

	a, ok = m.Adapter("tracker")
	require.True(t, ok)
	assert.Same(t, fallback, a)

	assert.Equal(t, []Domain{DomainTx}, m.Routes())

	require.NoError(t, m.Close())
	assert.True(t, fallback.Closed())
	assert.True(t, routed.Closed())
}

func TestAdapterManager_NoFallback(t *testing.T) {
	m := NewAdapterManager(nil)
	_, ok := m.Adapter("tracker")
	assert.False(t, ok)

	_, err := Lookup(m, "tracker")
	assert.ErrorIs(t, err, ErrAdapterNotFound)
	assert.Contains(t, err.Error(), "tracker")
}
