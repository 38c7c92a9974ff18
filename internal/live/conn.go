// ABOUTME: Live connection contract and the once-initialized holder shared by a run
// ABOUTME: The first caller dials, later callers reuse, Release force-closes exactly once

package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/2389/coven-migrate/internal/store"
)

// ErrReleased is returned by Get after the connector has been released
var ErrReleased = errors.New("live connection already released")

// Conn is a privileged connection to a running workspace service
type Conn interface {
	FindAll(ctx context.Context, domain store.Domain, filter store.Filter) ([]store.Doc, error)
	Upload(ctx context.Context, domain store.Domain, docs []store.Doc) error
	SendForceClose(ctx context.Context) error
	Close() error
}

// DialFunc opens a new connection
type DialFunc func(ctx context.Context) (Conn, error)

// Connector lazily creates one connection and hands the same one to every caller
type Connector struct {
	dial DialFunc

	mu       sync.Mutex
	conn     Conn
	dials    int
	released bool
}

// NewConnector returns a connector that dials with dial on first use
func NewConnector(dial DialFunc) *Connector {
	return &Connector{dial: dial}
}

// Get returns the shared connection, dialing it if needed. A failed dial is
// not cached; the next call dials again.
func (c *Connector) Get(ctx context.Context) (Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, ErrReleased
	}
	if c.conn != nil {
		return c.conn, nil
	}
	if c.dial == nil {
		return nil, errors.New("no live dialer configured")
	}

	c.dials++
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to live workspace: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// Connected reports whether a connection was established
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Dials returns the number of dial attempts
func (c *Connector) Dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}

// Release sends force-close through the connection, if any, and closes it.
// Later calls do nothing.
func (c *Connector) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil
	}
	c.released = true
	if c.conn == nil {
		return nil
	}

	var errs []error
	if err := c.conn.SendForceClose(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sending force-close: %w", err))
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing live connection: %w", err))
	}
	return errors.Join(errs...)
}
