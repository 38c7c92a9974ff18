// ABOUTME: Migration client facade over domain adapters, bound to one model and workspace
// ABOUTME: Steps read and write through it; markers are written through the same adapters

package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2389/coven-migrate/internal/store"
	"github.com/2389/coven-migrate/internal/txlog"
)

// ErrNoPlugin is returned when a marker is recorded by a client not bound to a plugin
var ErrNoPlugin = errors.New("client is not bound to a plugin")

// sharedState is the marker index shared by a client and its plugin-bound views
type sharedState struct {
	mu    sync.RWMutex
	state State
}

// Client gives migration steps scoped access to the workspace store
type Client struct {
	adapters  store.AdapterSource
	model     *txlog.Model
	logger    Logger
	workspace string
	plugin    string
	shared    *sharedState
}

// NewClient creates a client with an empty marker index; call Reload to populate it
func NewClient(adapters store.AdapterSource, model *txlog.Model, logger Logger, workspace string) *Client {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &Client{
		adapters:  adapters,
		model:     model,
		logger:    logger,
		workspace: workspace,
		shared:    &sharedState{state: make(State)},
	}
}

// Reload replaces the marker index with the markers currently stored
func (c *Client) Reload(ctx context.Context) (State, error) {
	state, err := LoadState(ctx, c.adapters)
	if err != nil {
		return nil, err
	}

	c.shared.mu.Lock()
	c.shared.state = state
	c.shared.mu.Unlock()
	return state.Clone(), nil
}

// State returns a copy of the marker index
func (c *Client) State() State {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	return c.shared.state.Clone()
}

// HasState reports whether the bound plugin has recorded state
func (c *Client) HasState(state string) bool {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	return c.shared.state.Has(c.plugin, state)
}

// ForPlugin returns a view of the client whose writes and markers are attributed to plugin
func (c *Client) ForPlugin(plugin string) *Client {
	cp := *c
	cp.plugin = plugin
	return &cp
}

// Plugin returns the plugin the client is bound to, if any
func (c *Client) Plugin() string { return c.plugin }

// Hierarchy returns the class hierarchy of the model being migrated to
func (c *Client) Hierarchy() *txlog.Hierarchy { return c.model.Hierarchy }

// Model returns the model snapshot being migrated to
func (c *Client) Model() *txlog.ModelDB { return c.model.DB }

// Workspace returns the workspace identifier
func (c *Client) Workspace() string { return c.workspace }

// Logger returns the step logger
func (c *Client) Logger() Logger { return c.logger }

func (c *Client) adapter(domain store.Domain) (store.DomainAdapter, error) {
	return store.Lookup(c.adapters, domain)
}

// Find returns the raw rows of a domain matching filter
func (c *Client) Find(ctx context.Context, domain store.Domain, filter store.Filter) ([]store.Doc, error) {
	adapter, err := c.adapter(domain)
	if err != nil {
		return nil, err
	}
	return adapter.RawFindAll(ctx, domain, filter)
}

// FindOne returns the first matching row or store.ErrNotFound
func (c *Client) FindOne(ctx context.Context, domain store.Domain, filter store.Filter) (store.Doc, error) {
	docs, err := c.Find(ctx, domain, filter)
	if err != nil {
		return store.Doc{}, err
	}
	if len(docs) == 0 {
		return store.Doc{}, store.ErrNotFound
	}
	return docs[0], nil
}

// FindClass resolves the domain of class through the hierarchy and returns rows
// of class or any class derived from it
func (c *Client) FindClass(ctx context.Context, class string, filter store.Filter) ([]store.Doc, error) {
	domain, err := c.model.Hierarchy.Domain(class)
	if err != nil {
		return nil, fmt.Errorf("resolving domain of %s: %w", class, err)
	}

	q := make(store.Filter, len(filter)+1)
	for k, v := range filter {
		q[k] = v
	}
	q[store.FieldClass] = store.In(c.model.Hierarchy.Descendants(class)...)
	return c.Find(ctx, domain, q)
}

// Upload inserts or replaces rows
func (c *Client) Upload(ctx context.Context, domain store.Domain, docs []store.Doc) error {
	adapter, err := c.adapter(domain)
	if err != nil {
		return err
	}
	if err := adapter.Upload(ctx, domain, docs); err != nil {
		return err
	}
	c.logger.Log("uploaded documents", "plugin", c.plugin, "domain", domain, "count", len(docs))
	return nil
}

// DeleteMany removes rows by ID
func (c *Client) DeleteMany(ctx context.Context, domain store.Domain, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	adapter, err := c.adapter(domain)
	if err != nil {
		return err
	}
	if err := adapter.Clean(ctx, domain, ids); err != nil {
		return err
	}
	c.logger.Log("deleted documents", "plugin", c.plugin, "domain", domain, "count", len(ids))
	return nil
}

// Update sets attributes on every row matching filter and returns the number updated
func (c *Client) Update(ctx context.Context, domain store.Domain, filter store.Filter, set map[string]any) (int, error) {
	docs, err := c.Find(ctx, domain, filter)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	for i := range docs {
		if docs[i].Attributes == nil {
			docs[i].Attributes = make(map[string]any, len(set))
		}
		for k, v := range set {
			docs[i].Attributes[k] = v
		}
		docs[i].ModifiedOn = now
	}

	if err := c.Upload(ctx, domain, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Mark durably records state for the bound plugin and adds it to the index
func (c *Client) Mark(ctx context.Context, state string) error {
	if c.plugin == "" {
		return ErrNoPlugin
	}

	adapter, err := c.adapter(store.DomainMigration)
	if err != nil {
		return err
	}
	if err := adapter.Upload(ctx, store.DomainMigration, []store.Doc{NewMarker(c.plugin, state)}); err != nil {
		return fmt.Errorf("recording migration state %s/%s: %w", c.plugin, state, err)
	}

	c.shared.mu.Lock()
	c.shared.state.Add(c.plugin, state)
	c.shared.mu.Unlock()
	return nil
}
