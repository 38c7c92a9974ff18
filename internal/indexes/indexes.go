// ABOUTME: Walks every non-reserved domain of the hierarchy and ensures its indexes exist
// ABOUTME: Index strategy is driven by each domain's estimated row count

package indexes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-migrate/internal/progress"
	"github.com/2389/coven-migrate/internal/store"
	"github.com/2389/coven-migrate/internal/txlog"
)

// SmallDomainThreshold is the estimated row count below which a domain only
// gets its class index
const SmallDomainThreshold = 1000

// reserved domains are never indexed as data domains
var reserved = map[store.Domain]bool{
	store.DomainModel:     true,
	store.DomainTransient: true,
	store.DomainBenchmark: true,
}

// IsReserved reports whether a domain is excluded from index maintenance
func IsReserved(domain store.Domain) bool {
	return reserved[domain]
}

// DomainResult records what was done for one domain
type DomainResult struct {
	Domain   store.Domain
	Estimate int
	Created  []string
	Elapsed  time.Duration
}

// Helper decides which indexes a domain needs and creates the missing ones
type Helper struct {
	Hierarchy *txlog.Hierarchy
	Threshold int
}

// NewHelper returns a helper using SmallDomainThreshold
func NewHelper(h *txlog.Hierarchy) *Helper {
	return &Helper{Hierarchy: h, Threshold: SmallDomainThreshold}
}

// Specs returns the indexes wanted for a domain of the given size
func (h *Helper) Specs(domain store.Domain, estimate int) []store.IndexSpec {
	specs := []store.IndexSpec{{Keys: []string{store.FieldClass}}}
	if estimate < h.Threshold {
		return specs
	}

	specs = append(specs,
		store.IndexSpec{Keys: []string{store.FieldSpace}},
		store.IndexSpec{Keys: []string{store.FieldModifiedOn}},
	)
	if h.Hierarchy == nil {
		return specs
	}

	seen := make(map[string]bool)
	for _, s := range specs {
		seen[s.Name(domain)] = true
	}
	for _, c := range h.Hierarchy.ClassesInDomain(domain) {
		for _, keys := range c.Indexes {
			spec := store.IndexSpec{Keys: keys}
			if name := spec.Name(domain); !seen[name] {
				seen[name] = true
				specs = append(specs, spec)
			}
		}
	}
	return specs
}

// CheckDomain creates the indexes of a domain that do not exist yet and
// returns the names it created
func (h *Helper) CheckDomain(ctx context.Context, adapter store.DomainAdapter, domain store.Domain, estimate int) ([]string, error) {
	existing, err := adapter.ListIndexes(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("listing indexes of %s: %w", domain, err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	var missing []store.IndexSpec
	var names []string
	for _, spec := range h.Specs(domain, estimate) {
		name := spec.Name(domain)
		if have[name] {
			continue
		}
		missing = append(missing, spec)
		names = append(names, name)
	}
	if len(missing) == 0 {
		return nil, nil
	}

	if err := adapter.CreateIndexes(ctx, domain, missing); err != nil {
		return nil, fmt.Errorf("creating indexes on %s: %w", domain, err)
	}
	return names, nil
}

// Domains returns the hierarchy's domains that take part in index maintenance
func Domains(h *txlog.Hierarchy) []store.Domain {
	var out []store.Domain
	for _, d := range h.Domains() {
		if !IsReserved(d) {
			out = append(out, d)
		}
	}
	return out
}

// Rebuild checks the indexes of every data domain known to the hierarchy.
// onProgress, if set, is called with (completed/total)*100 after each domain.
// A domain without an adapter is a configuration error and stops the rebuild.
func Rebuild(ctx context.Context, h *txlog.Hierarchy, adapters store.AdapterSource, onProgress func(float64)) ([]DomainResult, error) {
	logger := slog.Default().With("component", "indexes")
	helper := NewHelper(h)

	domains := Domains(h)
	results := make([]DomainResult, 0, len(domains))
	for i, domain := range domains {
		start := time.Now()

		adapter, err := store.Lookup(adapters, domain)
		if err != nil {
			return results, err
		}

		estimate, err := adapter.EstimatedCount(ctx, domain)
		if err != nil {
			return results, fmt.Errorf("estimating %s: %w", domain, err)
		}

		created, err := helper.CheckDomain(ctx, adapter, domain, estimate)
		if err != nil {
			return results, err
		}

		res := DomainResult{Domain: domain, Estimate: estimate, Created: created, Elapsed: time.Since(start)}
		results = append(results, res)
		logger.Debug("checked domain indexes",
			"domain", domain,
			"estimate", estimate,
			"created", len(created),
			"elapsed", res.Elapsed,
		)

		if onProgress != nil {
			onProgress(progress.Step(i+1, len(domains)))
		}
	}
	return results, nil
}
