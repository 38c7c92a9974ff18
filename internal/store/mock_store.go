// ABOUTME: Mock DomainAdapter implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject failures per operation

package store

import (
	"context"
	"sort"
	"sync"
)

type mockDomain struct {
	order []string
	docs  map[string]Doc
}

// MockStore is an in-memory DomainAdapter implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	domains map[Domain]*mockDomain
	indexes map[Domain]map[string]bool
	checks  []Domain // domains passed to CreateIndexes, in call order
	closed  bool

	// Optional failure injection, checked before each operation
	FailUpload func(domain Domain) error
	FailClean  func(domain Domain) error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		domains: make(map[Domain]*mockDomain),
		indexes: make(map[Domain]map[string]bool),
	}
}

func (m *MockStore) domain(d Domain) *mockDomain {
	md, ok := m.domains[d]
	if !ok {
		md = &mockDomain{docs: make(map[string]Doc)}
		m.domains[d] = md
	}
	return md
}

// RawFindAll returns copies of matching docs in insertion order.
func (m *MockStore) RawFindAll(ctx context.Context, domain Domain, filter Filter) ([]Doc, error) {
	if _, err := tableName(domain); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.domains[domain]
	if !ok {
		return nil, nil
	}

	var out []Doc
	for _, id := range md.order {
		doc := md.docs[id]
		if filter.Match(&doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// Upload stores copies of docs, replacing existing IDs in place.
func (m *MockStore) Upload(ctx context.Context, domain Domain, docs []Doc) error {
	if _, err := tableName(domain); err != nil {
		return err
	}
	if m.FailUpload != nil {
		if err := m.FailUpload(domain); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	md := m.domain(domain)
	for _, doc := range docs {
		if _, exists := md.docs[doc.ID]; !exists {
			md.order = append(md.order, doc.ID)
		}
		md.docs[doc.ID] = doc.Clone()
	}
	return nil
}

// Clean removes docs by ID.
func (m *MockStore) Clean(ctx context.Context, domain Domain, ids []string) error {
	if m.FailClean != nil {
		if err := m.FailClean(domain); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.domains[domain]
	if !ok {
		return nil
	}

	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
		delete(md.docs, id)
	}

	kept := md.order[:0]
	for _, id := range md.order {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	md.order = kept
	return nil
}

// EstimatedCount returns the exact number of docs in the domain.
func (m *MockStore) EstimatedCount(ctx context.Context, domain Domain) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if md, ok := m.domains[domain]; ok {
		return len(md.docs), nil
	}
	return 0, nil
}

// CreateIndexes records the requested index names.
func (m *MockStore) CreateIndexes(ctx context.Context, domain Domain, specs []IndexSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks = append(m.checks, domain)
	if m.indexes[domain] == nil {
		m.indexes[domain] = make(map[string]bool)
	}
	for _, spec := range specs {
		m.indexes[domain][spec.Name(domain)] = true
	}
	return nil
}

// ListIndexes returns the recorded index names, sorted.
func (m *MockStore) ListIndexes(ctx context.Context, domain Domain) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.indexes[domain] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// IndexChecks returns the domains passed to CreateIndexes, in call order.
func (m *MockStore) IndexChecks() []Domain {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Domain(nil), m.checks...)
}

// Domains returns the domains holding at least one doc, sorted.
func (m *MockStore) Domains() []Domain {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Domain
	for d, md := range m.domains {
		if len(md.docs) > 0 {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Closed reports whether Close has been called.
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
