// ABOUTME: Domain adapter interface and document types for workspace storage
// ABOUTME: Defines Doc, Domain, Filter and the DomainAdapter contract used by migrations

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = errors.New("not found")

// ErrAdapterNotFound is returned when no adapter serves a domain.
// It indicates a configuration defect and is never retried.
var ErrAdapterNotFound = errors.New("adapter not found")

// ErrInvalidDomain is returned for domain names that cannot be mapped to storage
var ErrInvalidDomain = errors.New("invalid domain name")

// Domain is a named partition of the workspace store
type Domain string

// Reserved domains
const (
	DomainModel     Domain = "model"     // schema-defining transactions (the installed model log)
	DomainTransient Domain = "transient" // never persisted
	DomainBenchmark Domain = "benchmark" // synthetic load data
	DomainMigration Domain = "migration" // migration state markers
	DomainTx        Domain = "tx"        // the workspace transaction log
)

// Field names with dedicated columns. Any other filter key addresses an attribute.
const (
	FieldID         = "_id"
	FieldClass      = "_class"
	FieldSpace      = "space"
	FieldModifiedBy = "modifiedBy"
	FieldModifiedOn = "modifiedOn"
)

// Doc is a raw row of a domain
type Doc struct {
	ID         string
	Class      string
	Space      string
	ModifiedBy string
	ModifiedOn time.Time
	Attributes map[string]any
}

// Get returns the value of a field or attribute and whether it is present
func (d *Doc) Get(key string) (any, bool) {
	switch key {
	case FieldID:
		return d.ID, true
	case FieldClass:
		return d.Class, true
	case FieldSpace:
		return d.Space, true
	case FieldModifiedBy:
		return d.ModifiedBy, true
	case FieldModifiedOn:
		return d.ModifiedOn.UnixMilli(), true
	}
	v, ok := d.Attributes[key]
	return v, ok
}

// String returns an attribute as a string, or "" if absent or not a string
func (d *Doc) String(key string) string {
	v, ok := d.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Clone returns a copy whose attribute map can be modified independently
func (d Doc) Clone() Doc {
	if d.Attributes != nil {
		attrs := make(map[string]any, len(d.Attributes))
		for k, v := range d.Attributes {
			attrs[k] = v
		}
		d.Attributes = attrs
	}
	return d
}

// IndexSpec describes one index on a domain. Keys are filter keys.
type IndexSpec struct {
	Keys []string
}

// Name returns the stable index name for the domain
func (s IndexSpec) Name(domain Domain) string {
	name := "idx_" + string(domain)
	for _, k := range s.Keys {
		name += "_" + sanitizeKey(k)
	}
	return name
}

// DomainAdapter is the raw storage contract the migration orchestrator needs
type DomainAdapter interface {
	// RawFindAll returns all rows of a domain matching the filter, in insertion order
	RawFindAll(ctx context.Context, domain Domain, filter Filter) ([]Doc, error)

	// Upload inserts or replaces rows by ID
	Upload(ctx context.Context, domain Domain, docs []Doc) error

	// Clean deletes rows by ID. Unknown IDs are ignored.
	Clean(ctx context.Context, domain Domain, ids []string) error

	// EstimatedCount returns an estimate of the number of rows in a domain
	EstimatedCount(ctx context.Context, domain Domain) (int, error)

	// CreateIndexes creates the given indexes if they do not exist
	CreateIndexes(ctx context.Context, domain Domain, specs []IndexSpec) error

	// ListIndexes returns the names of the indexes present on a domain
	ListIndexes(ctx context.Context, domain Domain) ([]string, error)

	// Close releases any resources held by the adapter
	Close() error
}

// AdapterSource resolves the adapter responsible for a domain
type AdapterSource interface {
	Adapter(domain Domain) (DomainAdapter, bool)
}

// Lookup resolves an adapter or returns ErrAdapterNotFound naming the domain
func Lookup(src AdapterSource, domain Domain) (DomainAdapter, error) {
	adapter, ok := src.Adapter(domain)
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: domain %s", ErrAdapterNotFound, domain)
	}
	return adapter, nil
}
