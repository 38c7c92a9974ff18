package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_FindAfterClean(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.Upload(ctx, DomainTx, []Doc{
		testDoc("a", "c", nil),
		testDoc("b", "c", nil),
		testDoc("c", "c", nil),
	}))
	require.NoError(t, m.Clean(ctx, DomainTx, []string{"b"}))

	docs, err := m.RawFindAll(ctx, DomainTx, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "c", docs[1].ID)
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.Upload(ctx, DomainTx, []Doc{testDoc("a", "c", map[string]any{"k": "v"})}))

	docs, err := m.RawFindAll(ctx, DomainTx, nil)
	require.NoError(t, err)
	docs[0].Attributes["k"] = "changed"

	again, err := m.RawFindAll(ctx, DomainTx, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", again[0].String("k"))
}

func TestMockStore_FailureInjection(t *testing.T) {
	m := NewMockStore()
	boom := errors.New("boom")
	m.FailUpload = func(d Domain) error {
		if d == DomainMigration {
			return boom
		}
		return nil
	}

	err := m.Upload(context.Background(), DomainMigration, []Doc{testDoc("a", "c", nil)})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, m.Upload(context.Background(), DomainTx, []Doc{testDoc("a", "c", nil)}))
	assert.Equal(t, []Domain{DomainTx}, m.Domains())
}

func TestMockStore_IndexChecks(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.CreateIndexes(ctx, "tracker", []IndexSpec{{Keys: []string{FieldClass}}}))
	require.NoError(t, m.CreateIndexes(ctx, "chunter", nil))

	assert.Equal(t, []Domain{"tracker", "chunter"}, m.IndexChecks())
	names, err := m.ListIndexes(ctx, "tracker")
	require.NoError(t, err)
	assert.Equal(t, []string{"idx_tracker__class"}, names)
}
