// ABOUTME: Class hierarchy derived by folding class and mixin definitions from the model log
// ABOUTME: Maps each class to its storage domain, ancestry, mixins and declared indexes

package txlog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/2389/coven-migrate/internal/store"
)

// Hierarchy errors
var (
	ErrDuplicateClass = errors.New("class already defined")
	ErrUnknownClass   = errors.New("unknown class")
	ErrNoDomain       = errors.New("class has no domain")
)

// ClassKind distinguishes ordinary classes from mixins
type ClassKind string

const (
	KindClass ClassKind = "class"
	KindMixin ClassKind = "mixin"
)

// Class is one node of the hierarchy
type Class struct {
	ID      string
	Kind    ClassKind
	Extends string       // parent class, empty for roots
	Domain  store.Domain // explicit domain, inherited by descendants when empty
	Indexes [][]string   // secondary indexes declared by the class
	Mixins  []string     // mixins applied to this class, in log order
}

// Hierarchy is rebuilt from the log and never persisted
type Hierarchy struct {
	mu      sync.RWMutex
	classes map[string]*Class
	order   []string
}

// NewHierarchy returns an empty hierarchy
func NewHierarchy() *Hierarchy {
	return &Hierarchy{classes: make(map[string]*Class)}
}

// Tx folds one tx into the hierarchy. Txes not describing classes are ignored.
func (h *Hierarchy) Tx(tx Tx) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tx.Kind == TxMixin {
		return h.applyMixin(tx)
	}
	if tx.ObjectClass != ClassClass && tx.ObjectClass != ClassMixin {
		return nil
	}

	switch tx.Kind {
	case TxCreate:
		return h.create(tx)
	case TxUpdate:
		return h.update(tx)
	case TxRemove:
		return h.remove(tx)
	default:
		return fmt.Errorf("tx %s: unsupported kind %q for class definition", tx.ID, tx.Kind)
	}
}

func (h *Hierarchy) create(tx Tx) error {
	if _, exists := h.classes[tx.ObjectID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, tx.ObjectID)
	}

	c := &Class{ID: tx.ObjectID, Kind: KindClass}
	if tx.ObjectClass == ClassMixin {
		c.Kind = KindMixin
	}
	if extends, _ := tx.Attributes["extends"].(string); extends != "" {
		if _, ok := h.classes[extends]; !ok {
			return fmt.Errorf("%w: %s extends %s", ErrUnknownClass, tx.ObjectID, extends)
		}
		c.Extends = extends
	}
	applyClassAttributes(c, tx.Attributes)

	h.classes[c.ID] = c
	h.order = append(h.order, c.ID)
	return nil
}

func (h *Hierarchy) update(tx Tx) error {
	c, ok := h.classes[tx.ObjectID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClass, tx.ObjectID)
	}
	applyClassAttributes(c, tx.Attributes)
	return nil
}

func (h *Hierarchy) remove(tx Tx) error {
	if _, ok := h.classes[tx.ObjectID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClass, tx.ObjectID)
	}
	delete(h.classes, tx.ObjectID)
	for i, id := range h.order {
		if id == tx.ObjectID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return nil
}

// applyMixin records a mixin on a class. Mixins on ordinary objects are ignored.
func (h *Hierarchy) applyMixin(tx Tx) error {
	target, ok := h.classes[tx.ObjectID]
	if !ok {
		return nil
	}
	mixin, ok := h.classes[tx.ObjectClass]
	if !ok || mixin.Kind != KindMixin {
		return fmt.Errorf("%w: mixin %s", ErrUnknownClass, tx.ObjectClass)
	}
	for _, m := range target.Mixins {
		if m == mixin.ID {
			return nil
		}
	}
	target.Mixins = append(target.Mixins, mixin.ID)
	return nil
}

func applyClassAttributes(c *Class, attrs map[string]any) {
	if domain, ok := attrs["domain"].(string); ok {
		c.Domain = store.Domain(domain)
	}
	if raw, ok := attrs["indexes"].([]any); ok {
		c.Indexes = c.Indexes[:0]
		for _, entry := range raw {
			keys := toStrings(entry)
			if len(keys) > 0 {
				c.Indexes = append(c.Indexes, keys)
			}
		}
	}
}

// toStrings accepts either a single key or a list of keys
func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Class returns a copy of a class definition
func (h *Hierarchy) Class(id string) (Class, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.classes[id]
	if !ok {
		return Class{}, false
	}
	cp := *c
	cp.Mixins = append([]string(nil), c.Mixins...)
	cp.Indexes = append([][]string(nil), c.Indexes...)
	return cp, true
}

// Mixins returns the mixins applied to class and its ancestors, nearest class first
func (h *Hierarchy) Mixins(class string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chain, err := h.ancestorsLocked(class)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range chain {
		out = append(out, h.classes[id].Mixins...)
	}
	return out, nil
}

// Classes returns all class IDs in definition order
func (h *Hierarchy) Classes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.order...)
}

// Ancestors returns the class followed by its parents, nearest first
func (h *Hierarchy) Ancestors(id string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ancestorsLocked(id)
}

func (h *Hierarchy) ancestorsLocked(id string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for id != "" {
		c, ok := h.classes[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownClass, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("class %s: cyclic ancestry", id)
		}
		seen[id] = true
		out = append(out, id)
		id = c.Extends
	}
	return out, nil
}

// IsDerived reports whether class is ancestor or a descendant of it
func (h *Hierarchy) IsDerived(class, ancestor string) bool {
	chain, err := h.Ancestors(class)
	if err != nil {
		return false
	}
	for _, id := range chain {
		if id == ancestor {
			return true
		}
	}
	return false
}

// Descendants returns class and every class deriving from it
func (h *Hierarchy) Descendants(class string) []string {
	var out []string
	for _, id := range h.Classes() {
		if h.IsDerived(id, class) {
			out = append(out, id)
		}
	}
	return out
}

// Domain resolves the storage domain of a class through its ancestry
func (h *Hierarchy) Domain(class string) (store.Domain, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chain, err := h.ancestorsLocked(class)
	if err != nil {
		return "", err
	}
	for _, id := range chain {
		if d := h.classes[id].Domain; d != "" {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoDomain, class)
}

// Domains returns every domain any class resolves to, sorted
func (h *Hierarchy) Domains() []store.Domain {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := make(map[store.Domain]bool)
	for _, c := range h.classes {
		if c.Domain != "" {
			set[c.Domain] = true
		}
	}

	out := make([]store.Domain, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ClassesInDomain returns the classes resolving to a domain, in definition order
func (h *Hierarchy) ClassesInDomain(domain store.Domain) []Class {
	var out []Class
	for _, id := range h.Classes() {
		d, err := h.Domain(id)
		if err != nil || d != domain {
			continue
		}
		if c, ok := h.Class(id); ok {
			out = append(out, c)
		}
	}
	return out
}
