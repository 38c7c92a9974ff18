// ABOUTME: In-memory snapshot of model objects built by applying the model log in order
// ABOUTME: Supports point lookups and class-aware filtered queries

package txlog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2389/coven-migrate/internal/store"
)

// ErrObjectNotFound is returned when a tx updates or removes an unknown object
var ErrObjectNotFound = errors.New("object not found")

// ModelDB holds the current state of every object created in the model log
type ModelDB struct {
	hierarchy *Hierarchy

	mu    sync.RWMutex
	docs  map[string]store.Doc
	order []string
}

// NewModelDB returns an empty snapshot using h for class matching
func NewModelDB(h *Hierarchy) *ModelDB {
	return &ModelDB{hierarchy: h, docs: make(map[string]store.Doc)}
}

// AddTxes applies txes in order. A tx that cannot be applied is skipped and
// later txes still apply; the returned error joins every skipped tx.
func (m *ModelDB) AddTxes(txes []Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, tx := range txes {
		if err := m.apply(tx); err != nil {
			errs = append(errs, fmt.Errorf("applying tx %s: %w", tx.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (m *ModelDB) apply(tx Tx) error {
	switch tx.Kind {
	case TxCreate:
		if _, exists := m.docs[tx.ObjectID]; !exists {
			m.order = append(m.order, tx.ObjectID)
		}
		attrs := make(map[string]any, len(tx.Attributes))
		for k, v := range tx.Attributes {
			attrs[k] = v
		}
		m.docs[tx.ObjectID] = store.Doc{
			ID:         tx.ObjectID,
			Class:      tx.ObjectClass,
			Space:      tx.ObjectSpace,
			ModifiedBy: tx.ModifiedBy,
			ModifiedOn: time.UnixMilli(tx.ModifiedOn).UTC(),
			Attributes: attrs,
		}

	case TxUpdate, TxMixin:
		doc, ok := m.docs[tx.ObjectID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, tx.ObjectID)
		}
		if doc.Attributes == nil {
			doc.Attributes = make(map[string]any)
		}
		if tx.Kind == TxMixin {
			mixins, _ := doc.Attributes["mixins"].(map[string]any)
			if mixins == nil {
				mixins = make(map[string]any)
			}
			mixins[tx.ObjectClass] = tx.Attributes
			doc.Attributes["mixins"] = mixins
		} else {
			for k, v := range tx.Attributes {
				doc.Attributes[k] = v
			}
		}
		doc.ModifiedBy = tx.ModifiedBy
		doc.ModifiedOn = time.UnixMilli(tx.ModifiedOn).UTC()
		m.docs[tx.ObjectID] = doc

	case TxRemove:
		if _, ok := m.docs[tx.ObjectID]; !ok {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, tx.ObjectID)
		}
		delete(m.docs, tx.ObjectID)
		for i, id := range m.order {
			if id == tx.ObjectID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}

	default:
		return fmt.Errorf("unsupported tx kind %q", tx.Kind)
	}
	return nil
}

// Get returns a copy of an object by ID
func (m *ModelDB) Get(id string) (store.Doc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return store.Doc{}, false
	}
	return doc.Clone(), true
}

// FindAll returns objects of class (or a derived class) matching filter.
// An empty class matches every object.
func (m *ModelDB) FindAll(class string, filter store.Filter) []store.Doc {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.Doc
	for _, id := range m.order {
		doc := m.docs[id]
		if class != "" && doc.Class != class && !m.hierarchy.IsDerived(doc.Class, class) {
			continue
		}
		if filter.Match(&doc) {
			out = append(out, doc.Clone())
		}
	}
	return out
}

// Len returns the number of objects in the snapshot
func (m *ModelDB) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
