// ABOUTME: Migration operations with optional pre-migrate, migrate and upgrade phases
// ABOUTME: TryMigrate and TryUpgrade run named steps once per workspace, keyed by state markers

package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/coven-migrate/internal/live"
	"github.com/2389/coven-migrate/internal/store"
)

// Operation errors
var (
	ErrDuplicateOperation = errors.New("duplicate operation name")
	ErrUnnamedOperation   = errors.New("operation name is required")
)

// MigrateFunc runs against the workspace store before or after cutover
type MigrateFunc func(ctx context.Context, client *Client, logger Logger) error

// ConnectFunc returns the run's shared live connection, creating it on first use
type ConnectFunc func(ctx context.Context) (live.Conn, error)

// UpgradeFunc runs against the live service instance
type UpgradeFunc func(ctx context.Context, state State, connect ConnectFunc, logger Logger) error

// Operation is a named unit of migration. Every phase is optional. The name is
// used both in logs and as the plugin key of its state markers.
type Operation struct {
	Name       string
	PreMigrate MigrateFunc
	Migrate    MigrateFunc
	Upgrade    UpgradeFunc
}

// ValidateOperations checks that every operation is named and names are unique
func ValidateOperations(ops []Operation) error {
	seen := make(map[string]bool, len(ops))
	for i, op := range ops {
		if op.Name == "" {
			return fmt.Errorf("%w: operation #%d", ErrUnnamedOperation, i)
		}
		if seen[op.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateOperation, op.Name)
		}
		seen[op.Name] = true
	}
	return nil
}

// MigrateStep is one named, run-once step of TryMigrate
type MigrateStep struct {
	State string
	Func  func(ctx context.Context, client *Client) error
}

// TryMigrate runs each step not yet marked for plugin, in order, recording its
// marker only after the step succeeds. The first failure stops the sequence.
func TryMigrate(ctx context.Context, client *Client, plugin string, steps []MigrateStep) error {
	pc := client.ForPlugin(plugin)
	for _, step := range steps {
		if pc.HasState(step.State) {
			continue
		}

		start := time.Now()
		if err := step.Func(ctx, pc); err != nil {
			pc.logger.Error("migration step failed", "plugin", plugin, "state", step.State, "error", err)
			return fmt.Errorf("migration %s/%s: %w", plugin, step.State, err)
		}
		if err := pc.Mark(ctx, step.State); err != nil {
			return err
		}
		pc.logger.Log("migration step applied", "plugin", plugin, "state", step.State, "time", time.Since(start))
	}
	return nil
}

// UpgradeStep is one named, run-once step of TryUpgrade
type UpgradeStep struct {
	State string
	Func  func(ctx context.Context, conn live.Conn) error
}

// TryUpgrade is TryMigrate for the upgrade phase. Steps not in state run over
// the shared live connection, and each success is recorded through it. No
// connection is opened when every step is already recorded.
func TryUpgrade(ctx context.Context, state State, connect ConnectFunc, plugin string, steps []UpgradeStep) error {
	for _, step := range steps {
		if state.Has(plugin, step.State) {
			continue
		}

		conn, err := connect(ctx)
		if err != nil {
			return err
		}
		if err := step.Func(ctx, conn); err != nil {
			return fmt.Errorf("upgrade %s/%s: %w", plugin, step.State, err)
		}
		if err := conn.Upload(ctx, store.DomainMigration, []store.Doc{NewMarker(plugin, step.State)}); err != nil {
			return fmt.Errorf("recording upgrade state %s/%s: %w", plugin, step.State, err)
		}
		state.Add(plugin, step.State)
	}
	return nil
}
