// ABOUTME: Conversion between store documents and protobuf Struct messages
// ABOUTME: Values are normalized through JSON so any decoded attribute map encodes

package live

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/2389/coven-migrate/internal/store"
)

func docToMap(doc store.Doc) map[string]any {
	m := map[string]any{
		store.FieldID:         doc.ID,
		store.FieldClass:      doc.Class,
		store.FieldSpace:      doc.Space,
		store.FieldModifiedBy: doc.ModifiedBy,
		store.FieldModifiedOn: doc.ModifiedOn.UnixMilli(),
	}
	if len(doc.Attributes) > 0 {
		m["attributes"] = doc.Attributes
	}
	return m
}

func docFromMap(m map[string]any) store.Doc {
	doc := store.Doc{}
	doc.ID, _ = m[store.FieldID].(string)
	doc.Class, _ = m[store.FieldClass].(string)
	doc.Space, _ = m[store.FieldSpace].(string)
	doc.ModifiedBy, _ = m[store.FieldModifiedBy].(string)
	if ms, ok := m[store.FieldModifiedOn].(float64); ok {
		doc.ModifiedOn = time.UnixMilli(int64(ms)).UTC()
	}
	if attrs, ok := m["attributes"].(map[string]any); ok {
		doc.Attributes = attrs
	}
	return doc
}

// newStruct builds a Struct from arbitrary JSON-encodable values
func newStruct(v map[string]any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return structpb.NewStruct(normalized)
}

func docsToList(docs []store.Doc) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = docToMap(d)
	}
	return out
}

func docsFromList(v any) []store.Doc {
	list, _ := v.([]any)
	out := make([]store.Doc, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, docFromMap(m))
		}
	}
	return out
}

func stringsFromList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
