// ABOUTME: Shared fixtures for orchestrator tests
// ABOUTME: Recording logger, progress sink, notifier and a store-backed live connection

package upgrade

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2389/coven-migrate/internal/live"
	"github.com/2389/coven-migrate/internal/migration"
	"github.com/2389/coven-migrate/internal/store"
	"github.com/2389/coven-migrate/internal/txlog"
)

// events collects the order in which steps ran
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, s)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

// eventLogger turns catch-up log lines into events
type eventLogger struct {
	ev     *events
	errors []string
}

func (l *eventLogger) Log(msg string, args ...any) {
	switch msg {
	case "migrate indexes":
		l.ev.add("catch-up indexes")
	case "compacting model transactions":
		l.ev.add("catch-up compaction")
	}
}

func (l *eventLogger) Error(msg string, args ...any) {
	l.errors = append(l.errors, msg)
}

type progressLog struct {
	mu     sync.Mutex
	values []float64
}

func (p *progressLog) sink(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressLog) requireMonotonic(t *testing.T) {
	t.Helper()
	for i := 1; i < len(p.values); i++ {
		require.GreaterOrEqual(t, p.values[i], p.values[i-1], "progress decreased at %d: %v", i, p.values)
	}
}

func (p *progressLog) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = nil
}

func (p *progressLog) last() float64 {
	if len(p.values) == 0 {
		return -1
	}
	return p.values[len(p.values)-1]
}

type fakeNotifier struct {
	calls []string
	err   error
}

func (n *fakeNotifier) ForceClose(ctx context.Context, workspace string) error {
	n.calls = append(n.calls, workspace)
	return n.err
}

// storeConn is a live.Conn writing straight into a domain adapter
type storeConn struct {
	adapter     store.DomainAdapter
	forceCloses int
	closes      int
}

func (c *storeConn) FindAll(ctx context.Context, domain store.Domain, filter store.Filter) ([]store.Doc, error) {
	return c.adapter.RawFindAll(ctx, domain, filter)
}

func (c *storeConn) Upload(ctx context.Context, domain store.Domain, docs []store.Doc) error {
	return c.adapter.Upload(ctx, domain, docs)
}

func (c *storeConn) SendForceClose(ctx context.Context) error {
	c.forceCloses++
	return nil
}

func (c *storeConn) Close() error {
	c.closes++
	return nil
}

// fixture wires an Upgrader to a MockStore
type fixture struct {
	mock     *store.MockStore
	adapters *store.AdapterManager
	ev       *events
	logger   *eventLogger
	progress *progressLog
	notifier *fakeNotifier
	conns    []*storeConn
}

func newFixture() *fixture {
	mock := store.NewMockStore()
	ev := &events{}
	return &fixture{
		mock:     mock,
		adapters: store.NewAdapterManager(mock),
		ev:       ev,
		logger:   &eventLogger{ev: ev},
		notifier: &fakeNotifier{},
	}
}

func (f *fixture) dial(ctx context.Context) (live.Conn, error) {
	c := &storeConn{adapter: f.mock}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fixture) upgrader(t *testing.T, txes []txlog.Tx, ops []migration.Operation, mutate ...func(*Config)) *Upgrader {
	t.Helper()
	f.progress = &progressLog{}
	cfg := Config{
		Workspace:  "ws-1",
		Txes:       txes,
		Operations: ops,
		Adapters:   f.adapters,
		Logger:     f.logger,
		Progress:   f.progress.sink,
		Dial:       f.dial,
		Notifier:   f.notifier,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	u, err := New(cfg)
	require.NoError(t, err)
	return u
}

func targetTxes() []txlog.Tx {
	return []txlog.Tx{
		txlog.DefineClass(txlog.ClassDoc, "", ""),
		txlog.DefineClass("task:class:Issue", txlog.ClassDoc, "task"),
		txlog.DefineClass("contact:class:Person", txlog.ClassDoc, "contact"),
		txlog.DefineClass("core:class:Temp", txlog.ClassDoc, store.DomainTransient),
	}
}

func markers(t *testing.T, f *fixture) migration.State {
	t.Helper()
	state, err := migration.LoadState(context.Background(), f.adapters)
	require.NoError(t, err)
	return state
}
