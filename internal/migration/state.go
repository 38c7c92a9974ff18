// ABOUTME: Migration state markers grouped per plugin, used to skip applied steps
// ABOUTME: Loaded from the migration domain; markers are appended, never rewritten

package migration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-migrate/internal/store"
	"github.com/2389/coven-migrate/internal/txlog"
)

// State maps a plugin name to the set of state identifiers already applied
type State map[string]map[string]struct{}

// Has reports whether plugin has recorded state
func (s State) Has(plugin, state string) bool {
	_, ok := s[plugin][state]
	return ok
}

// Add records state for plugin
func (s State) Add(plugin, state string) {
	set, ok := s[plugin]
	if !ok {
		set = make(map[string]struct{})
		s[plugin] = set
	}
	set[state] = struct{}{}
}

// Plugins returns the plugin names with at least one marker, sorted
func (s State) Plugins() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// States returns the recorded states of a plugin, sorted
func (s State) States(plugin string) []string {
	out := make([]string, 0, len(s[plugin]))
	for st := range s[plugin] {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy
func (s State) Clone() State {
	out := make(State, len(s))
	for p, set := range s {
		cp := make(map[string]struct{}, len(set))
		for st := range set {
			cp[st] = struct{}{}
		}
		out[p] = cp
	}
	return out
}

// MarkerFilter selects marker rows in the migration domain
var MarkerFilter = store.Filter{store.FieldClass: txlog.ClassMigrationState}

// GroupMarkers reduces marker rows into a State
func GroupMarkers(docs []store.Doc) State {
	state := make(State)
	for i := range docs {
		plugin, st := docs[i].String("plugin"), docs[i].String("state")
		if plugin == "" || st == "" {
			continue
		}
		state.Add(plugin, st)
	}
	return state
}

// LoadState reads every marker from the migration domain. It has no side effects
// and may be called again mid-run to observe markers recorded since.
func LoadState(ctx context.Context, adapters store.AdapterSource) (State, error) {
	adapter, err := store.Lookup(adapters, store.DomainMigration)
	if err != nil {
		return nil, err
	}

	docs, err := adapter.RawFindAll(ctx, store.DomainMigration, MarkerFilter)
	if err != nil {
		return nil, fmt.Errorf("loading migration state: %w", err)
	}
	return GroupMarkers(docs), nil
}

// NewMarker builds the marker row for (plugin, state)
func NewMarker(plugin, state string) store.Doc {
	return store.Doc{
		ID:         uuid.NewString(),
		Class:      txlog.ClassMigrationState,
		Space:      txlog.SpaceConfiguration,
		ModifiedBy: txlog.AccountSystem,
		ModifiedOn: time.Now().UTC(),
		Attributes: map[string]any{
			"plugin": plugin,
			"state":  state,
		},
	}
}
