// ABOUTME: Fresh workspace initialization and upgrade-only passes over an open connection
// ABOUTME: InitModel always closes the adapters; UpdateModel leaves the connection to its owner

package upgrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/coven-migrate/internal/indexes"
	"github.com/2389/coven-migrate/internal/live"
	"github.com/2389/coven-migrate/internal/migration"
	"github.com/2389/coven-migrate/internal/progress"
	"github.com/2389/coven-migrate/internal/store"
	"github.com/2389/coven-migrate/internal/txlog"
)

// Phases of InitModel and UpdateModel
const (
	PhaseInit   progress.Phase = "init"
	PhaseUpdate progress.Phase = "update"
)

var (
	updateUpgradeRange = progress.Range{Lo: 0, Hi: 30}
	updateIndexRange   = progress.Range{Lo: 30, Hi: 100}
)

// InitModel prepares a fresh workspace: optionally drops system-authored model
// txes left by a previous attempt, writes the first tx, installs the model
// and provisions the bucket. The adapters are closed on every path.
func (u *Upgrader) InitModel(ctx context.Context, deleteFirst bool) (res *Result, err error) {
	start := time.Now()
	r := &run{
		res: &Result{Workspace: u.cfg.Workspace},
		rep: progress.NewReporter(u.cfg.Progress),
	}
	defer func() {
		if cerr := u.cfg.Adapters.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing adapters: %w", cerr))
		}
		r.res.Duration = time.Since(start)
		u.metrics.IncRuns(RunInit, err)
		if err != nil {
			u.logger.Error("failed to create workspace", "error", err)
		}
	}()

	if err := txlog.ValidateModelTxes(u.cfg.Txes); err != nil {
		return r.res, u.stepError(PhaseInit, validateOperation, start, err)
	}
	r.res.Txes = len(u.cfg.Txes)

	txAdapter, err := store.Lookup(u.cfg.Adapters, store.DomainTx)
	if err != nil {
		return r.res, u.stepError(PhaseInit, "", start, err)
	}

	if deleteFirst {
		err := u.step(r, PhaseInit, StateDeleteModel, func() error {
			u.log.Log("deleting model...", "workspace", u.cfg.Workspace)
			client := migration.NewClient(u.cfg.Adapters, nil, u.log, u.cfg.Workspace)
			if err := u.deleteModel(ctx, client, u.initPreserve); err != nil {
				return err
			}
			u.log.Log("transactions deleted.", "workspace", u.cfg.Workspace)
			return nil
		})
		if err != nil {
			return r.res, err
		}
	}

	err = u.step(r, PhaseInit, firstTxID, func() error {
		u.log.Log("creating database...", "workspace", u.cfg.Workspace)
		return txAdapter.Upload(ctx, store.DomainTx, []store.Doc{{
			ID:         firstTxID,
			Class:      txlog.ClassTx,
			Space:      txlog.SpaceDerivedTx,
			ModifiedBy: txlog.AccountSystem,
			ModifiedOn: time.Now().UTC(),
		}})
	})
	if err != nil {
		return r.res, err
	}
	r.rep.Report(30)

	err = u.step(r, PhaseInit, cutoverOperation, func() error {
		u.log.Log("creating data...", "workspace", u.cfg.Workspace)
		adapter, err := store.Lookup(u.cfg.Adapters, store.DomainModel)
		if err != nil {
			return err
		}
		return adapter.Upload(ctx, store.DomainModel, txlog.ToDocs(u.cfg.Txes))
	})
	if err != nil {
		return r.res, err
	}
	r.rep.Report(60)

	if u.cfg.Provisioner != nil {
		err = u.step(r, PhaseInit, "bucket", func() error {
			u.log.Log("create storage bucket", "workspace", u.cfg.Workspace)
			return u.cfg.Provisioner.Make(ctx, u.cfg.Workspace)
		})
		if err != nil {
			return r.res, err
		}
	}

	r.rep.Done()
	return r.res, nil
}

// UpdateModel runs only the upgrade phase of every operation over conn and
// then checks the indexes. conn is not released.
func (u *Upgrader) UpdateModel(ctx context.Context, conn live.Conn) (res *Result, err error) {
	start := time.Now()
	r := &run{
		res: &Result{Workspace: u.cfg.Workspace},
		rep: progress.NewReporter(u.cfg.Progress),
	}
	defer func() {
		r.res.Duration = time.Since(start)
		u.metrics.IncRuns(RunUpdate, err)
	}()

	if err := u.load(r); err != nil {
		return r.res, err
	}
	r.res.Connected = true

	u.log.Log("connecting to transactor", "workspace", u.cfg.Workspace)
	docs, err := conn.FindAll(ctx, store.DomainMigration, migration.MarkerFilter)
	if err != nil {
		return r.res, u.stepError(PhaseUpdate, "", start, fmt.Errorf("loading migration state: %w", err))
	}
	state := migration.GroupMarkers(docs)

	connect := func(context.Context) (live.Conn, error) { return conn, nil }
	report := r.rep.Range(updateUpgradeRange)
	ops := u.cfg.Operations
	for i, op := range ops {
		if op.Upgrade != nil {
			fn := op.Upgrade
			err := u.step(r, PhaseUpdate, op.Name, func() error {
				return fn(ctx, state.Clone(), connect, u.log)
			})
			if err != nil {
				return r.res, err
			}
		}
		report(progress.Step(i+1, len(ops)))
	}
	report(100)

	err = u.step(r, PhaseUpdate, "indexes", func() error {
		results, err := indexes.Rebuild(ctx, r.model.Hierarchy, u.cfg.Adapters, r.rep.Range(updateIndexRange))
		r.res.Indexes = results
		return err
	})
	if err != nil {
		return r.res, err
	}

	r.rep.Done()
	return r.res, nil
}
