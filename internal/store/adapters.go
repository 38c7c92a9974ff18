// ABOUTME: Domain-to-adapter routing with a default adapter and explicit routes
// ABOUTME: Owns the adapters it routes to and closes each of them exactly once

package store

import (
	"errors"
	"sort"
	"sync"
)

// AdapterManager routes domains to adapters
type AdapterManager struct {
	mu       sync.RWMutex
	fallback DomainAdapter
	routes   map[Domain]DomainAdapter
}

// NewAdapterManager creates a manager. fallback serves every unrouted domain
// and may be nil, in which case unrouted domains have no adapter.
func NewAdapterManager(fallback DomainAdapter) *AdapterManager {
	return &AdapterManager{
		fallback: fallback,
		routes:   make(map[Domain]DomainAdapter),
	}
}

// Route assigns an adapter to a domain, overriding the fallback
func (m *AdapterManager) Route(domain Domain, adapter DomainAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[domain] = adapter
}

// Adapter returns the adapter for a domain
func (m *AdapterManager) Adapter(domain Domain) (DomainAdapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if adapter, ok := m.routes[domain]; ok {
		return adapter, adapter != nil
	}
	return m.fallback, m.fallback != nil
}

// Routes returns the explicitly routed domains, sorted
func (m *AdapterManager) Routes() []Domain {
	m.mu.RLock()
	defer m.mu.RUnlock()

	domains := make([]Domain, 0, len(m.routes))
	for d := range m.routes {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	return domains
}

// Close closes every distinct adapter
func (m *AdapterManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[DomainAdapter]bool)
	var errs []error
	closeOnce := func(a DomainAdapter) {
		if a == nil || seen[a] {
			return
		}
		seen[a] = true
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	closeOnce(m.fallback)
	for _, a := range m.routes {
		closeOnce(a)
	}
	return errors.Join(errs...)
}
