package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	doc := Doc{
		ID:         "tx-1",
		Class:      "core:class:TxCreateDoc",
		ModifiedBy: "user-1",
		ModifiedOn: time.UnixMilli(42),
		Attributes: map[string]any{"objectClass": "contact:class:Person", "rank": float64(3)},
	}

	assert.True(t, Filter(nil).Match(&doc))
	assert.True(t, Filter{FieldModifiedBy: "user-1"}.Match(&doc))
	assert.True(t, Filter{"rank": 3}.Match(&doc))
	assert.True(t, Filter{FieldModifiedOn: int64(42)}.Match(&doc))
	assert.False(t, Filter{"objectClass": NotIn("contact:class:Person")}.Match(&doc))
	assert.True(t, Filter{"missing": NotIn("x")}.Match(&doc))
	assert.False(t, Filter{"missing": In("x")}.Match(&doc))
	assert.False(t, Filter{"objectClass": map[string]any{"nested": true}}.Match(&doc))
}

func TestFilter_MapRoundTrip(t *testing.T) {
	f := Filter{
		"objectSpace": "core:space:Model",
		FieldID:       In("a", "b"),
	}

	back, err := FilterFromMap(f.ToMap())
	require.NoError(t, err)
	assert.Equal(t, "core:space:Model", back["objectSpace"])
	assert.Equal(t, Cond{Op: OpIn, Values: []any{"a", "b"}}, back[FieldID])

	_, err = FilterFromMap(map[string]any{"k": map[string]any{"$regex": []any{"x"}}})
	assert.Error(t, err)
}
