package txlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-migrate/internal/store"
)

func sampleHierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	h := NewHierarchy()
	for _, tx := range []Tx{
		DefineClass(ClassDoc, "", ""),
		DefineClass("tracker:class:Issue", ClassDoc, "tracker"),
		DefineClass("tracker:class:SubIssue", "tracker:class:Issue", ""),
		DefineClass("chunter:class:Message", ClassDoc, "chunter"),
		DefineMixin("tracker:mixin:Estimation", "tracker:class:Issue"),
	} {
		require.NoError(t, h.Tx(tx))
	}
	return h
}

func TestHierarchy_DomainInherited(t *testing.T) {
	h := sampleHierarchy(t)

	d, err := h.Domain("tracker:class:SubIssue")
	require.NoError(t, err)
	assert.Equal(t, store.Domain("tracker"), d)

	_, err = h.Domain(ClassDoc)
	assert.ErrorIs(t, err, ErrNoDomain)

	_, err = h.Domain("nope")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestHierarchy_Domains(t *testing.T) {
	h := sampleHierarchy(t)
	assert.Equal(t, []store.Domain{"chunter", "tracker"}, h.Domains())
}

func TestHierarchy_Ancestry(t *testing.T) {
	h := sampleHierarchy(t)

	chain, err := h.Ancestors("tracker:class:SubIssue")
	require.NoError(t, err)
	assert.Equal(t, []string{"tracker:class:SubIssue", "tracker:class:Issue", ClassDoc}, chain)

	assert.True(t, h.IsDerived("tracker:class:SubIssue", ClassDoc))
	assert.False(t, h.IsDerived("chunter:class:Message", "tracker:class:Issue"))
	assert.Equal(t, []string{"tracker:class:Issue", "tracker:class:SubIssue", "tracker:mixin:Estimation"},
		h.Descendants("tracker:class:Issue"))
}

func TestHierarchy_Errors(t *testing.T) {
	h := sampleHierarchy(t)

	err := h.Tx(DefineClass("tracker:class:Issue", ClassDoc, "tracker"))
	assert.ErrorIs(t, err, ErrDuplicateClass)

	err = h.Tx(DefineClass("x:class:Orphan", "x:class:Missing", "x"))
	assert.ErrorIs(t, err, ErrUnknownClass)

	err = h.Tx(NewTx(TxUpdate, ClassClass, "x:class:Missing", nil))
	assert.ErrorIs(t, err, ErrUnknownClass)

	// Non-class txes are ignored
	assert.NoError(t, h.Tx(NewTx(TxCreate, "tracker:class:Issue", "issue-1", nil)))
}

func TestHierarchy_MixinsAndIndexes(t *testing.T) {
	h := sampleHierarchy(t)

	require.NoError(t, h.Tx(NewTx(TxMixin, "tracker:mixin:Estimation", "tracker:class:Issue", nil)))
	require.NoError(t, h.Tx(NewTx(TxUpdate, ClassClass, "tracker:class:Issue", map[string]any{
		"indexes": []any{"status", []any{"space", "rank"}},
	})))

	c, ok := h.Class("tracker:class:Issue")
	require.True(t, ok)
	assert.Equal(t, []string{"tracker:mixin:Estimation"}, c.Mixins)
	assert.Equal(t, [][]string{{"status"}, {"space", "rank"}}, c.Indexes)

	inherited, err := h.Mixins("tracker:class:SubIssue")
	require.NoError(t, err)
	assert.Equal(t, []string{"tracker:mixin:Estimation"}, inherited)

	err = h.Tx(NewTx(TxMixin, "tracker:class:SubIssue", "tracker:class:Issue", nil))
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestHierarchy_Remove(t *testing.T) {
	h := sampleHierarchy(t)

	require.NoError(t, h.Tx(NewTx(TxRemove, ClassClass, "chunter:class:Message", nil)))
	assert.Equal(t, []store.Domain{"tracker"}, h.Domains())
	assert.Empty(t, h.ClassesInDomain("chunter"))
	assert.Len(t, h.ClassesInDomain("tracker"), 3)
}
