// ABOUTME: Phase orchestrator driving a workspace through the ordered migration operations
// ABOUTME: Load, pre-migrate, cutover, migrate, catch-up, upgrade and finalize, in that order

package upgrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-migrate/internal/indexes"
	"github.com/2389/coven-migrate/internal/live"
	"github.com/2389/coven-migrate/internal/metrics"
	"github.com/2389/coven-migrate/internal/migration"
	"github.com/2389/coven-migrate/internal/progress"
	"github.com/2389/coven-migrate/internal/storage"
	"github.com/2389/coven-migrate/internal/store"
	"github.com/2389/coven-migrate/internal/txlog"
)

// Catch-up steps recorded under the core plugin
const (
	CorePlugin        = "core"
	StateIndexes      = "indexes-v5"
	StateDeleteModel  = "delete-model"
	firstTxID         = "first-tx"
	cutoverOperation  = "model"
	releaseOperation  = "release"
	validateOperation = "validate"
)

// Run kinds counted in metrics
const (
	RunUpgrade = "upgrade"
	RunInit    = "init"
	RunUpdate  = "update"
)

// Adapters is the store the run works on. The run never closes it, except InitModel.
type Adapters interface {
	store.AdapterSource
	Close() error
}

// Config configures an Upgrader
type Config struct {
	Workspace  string
	Txes       []txlog.Tx            // target model log
	Operations []migration.Operation // executed in this order
	Adapters   Adapters

	Logger   migration.Logger // step logger, defaults to slog
	Progress progress.Sink

	// SkipTxUpdate leaves the installed model untouched when cutover is managed elsewhere
	SkipTxUpdate bool
	// ForceIndexes rebuilds all indexes before the migrate phase
	ForceIndexes bool
	// PreserveClasses overrides DefaultPreservedClasses when non-nil
	PreserveClasses []string
	// InitPreserveClasses overrides DefaultInitPreservedClasses when non-nil
	InitPreserveClasses []string

	Dial        live.DialFunc
	Notifier    live.Notifier
	Provisioner storage.Provisioner
}

// Upgrader runs migrations for one workspace
type Upgrader struct {
	cfg          Config
	preserve     PreservePolicy
	initPreserve PreservePolicy
	log          migration.Logger
	logger       *slog.Logger
	metrics      *metrics.Collector
}

// New validates cfg and returns an Upgrader
func New(cfg Config) (*Upgrader, error) {
	if cfg.Workspace == "" {
		return nil, errors.New("workspace is required")
	}
	if cfg.Adapters == nil {
		return nil, errors.New("adapters are required")
	}
	if err := migration.ValidateOperations(cfg.Operations); err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "upgrade", "workspace", cfg.Workspace)
	stepLog := cfg.Logger
	if stepLog == nil {
		stepLog = migration.NewSlogLogger(logger)
	}

	classes := cfg.PreserveClasses
	if classes == nil {
		classes = DefaultPreservedClasses
	}
	initClasses := cfg.InitPreserveClasses
	if initClasses == nil {
		initClasses = DefaultInitPreservedClasses
	}

	return &Upgrader{
		cfg:          cfg,
		preserve:     NewPreservePolicy(classes...),
		initPreserve: NewPreservePolicy(initClasses...),
		log:          stepLog,
		logger:       logger,
		metrics:      metrics.NewCollector(cfg.Workspace),
	}, nil
}

// Policy returns the compaction policy in effect
func (u *Upgrader) Policy() PreservePolicy {
	return u.preserve
}

// InitPolicy returns the policy InitModel applies when deleting first
func (u *Upgrader) InitPolicy() PreservePolicy {
	return u.initPreserve
}

// run holds the per-invocation state of UpgradeModel
type run struct {
	res            *Result
	rep            *progress.Reporter
	model          *txlog.Model
	indexesRebuilt bool
}

func (u *Upgrader) stepError(phase progress.Phase, op string, start time.Time, err error) error {
	elapsed := time.Since(start)
	u.log.Error("step failed",
		"phase", phase,
		"operation", op,
		"workspace", u.cfg.Workspace,
		"time", elapsed,
		"error", err,
	)
	u.metrics.ObserveStep(string(phase), op, metrics.OutcomeError, elapsed)
	return &StepError{Phase: phase, Operation: op, Workspace: u.cfg.Workspace, Elapsed: elapsed, Err: err}
}

// step runs fn, records its timing and wraps its error
func (u *Upgrader) step(r *run, phase progress.Phase, op string, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		return u.stepError(phase, op, start, err)
	}
	elapsed := time.Since(start)
	r.res.Steps = append(r.res.Steps, StepTiming{Phase: phase, Operation: op, Elapsed: elapsed})
	u.metrics.ObserveStep(string(phase), op, metrics.OutcomeOK, elapsed)
	u.log.Log(string(phase)+":", "workspace", u.cfg.Workspace, "operation", op, "time", elapsed)
	return nil
}

// UpgradeModel migrates the workspace to cfg.Txes. The returned Result is
// never nil. Progress ends at exactly 100 on success.
func (u *Upgrader) UpgradeModel(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	r := &run{
		res: &Result{Workspace: u.cfg.Workspace},
		rep: progress.NewReporter(u.cfg.Progress),
	}
	defer func() {
		r.res.Duration = time.Since(start)
		u.metrics.IncRuns(RunUpgrade, err)
	}()

	if err := u.load(r); err != nil {
		return r.res, err
	}

	preClient := migration.NewClient(u.cfg.Adapters, r.model, u.log, u.cfg.Workspace)
	if _, err := preClient.Reload(ctx); err != nil {
		return r.res, u.stepError(progress.PhaseLoad, "", start, err)
	}
	r.rep.Phase(progress.PhaseLoad, 100)

	if err := u.preMigrate(ctx, r, preClient); err != nil {
		return r.res, err
	}
	if err := u.cutover(ctx, r); err != nil {
		return r.res, err
	}

	client := migration.NewClient(u.cfg.Adapters, r.model, u.log, u.cfg.Workspace)
	if _, err := client.Reload(ctx); err != nil {
		return r.res, u.stepError(progress.PhaseMigrate, "", time.Now(), err)
	}

	if err := u.forceIndexes(ctx, r); err != nil {
		return r.res, err
	}
	if err := u.migrate(ctx, r, client); err != nil {
		return r.res, err
	}
	if err := u.catchUp(ctx, r, client); err != nil {
		return r.res, err
	}

	u.log.Log("apply upgrade operations", "workspace", u.cfg.Workspace)
	if err := u.upgradeAndFinalize(ctx, r, client.State()); err != nil {
		return r.res, err
	}

	r.rep.Done()
	u.logger.Info("upgrade complete", "steps", len(r.res.Steps), "elapsed", time.Since(start))
	return r.res, nil
}

// load validates the target log and builds the hierarchy and snapshot
func (u *Upgrader) load(r *run) error {
	r.rep.Phase(progress.PhaseLoad, 0)
	start := time.Now()

	if err := txlog.ValidateModelTxes(u.cfg.Txes); err != nil {
		return u.stepError(progress.PhaseLoad, validateOperation, start, err)
	}

	model, err := txlog.BuildModel(u.logger, u.cfg.Txes)
	if err != nil {
		return u.stepError(progress.PhaseLoad, "", start, err)
	}
	r.model = model
	r.res.Txes = len(u.cfg.Txes)
	r.res.ClassificationErrors = model.ClassificationErrors
	return nil
}

func (u *Upgrader) preMigrate(ctx context.Context, r *run, client *migration.Client) error {
	report := r.rep.Range(progress.For(progress.PhasePreMigrate))
	ops := u.cfg.Operations
	for i, op := range ops {
		if op.PreMigrate != nil {
			fn := op.PreMigrate
			err := u.step(r, progress.PhasePreMigrate, op.Name, func() error {
				return fn(ctx, client.ForPlugin(op.Name), u.log)
			})
			if err != nil {
				return err
			}
		}
		report(progress.Step(i+1, len(ops)))
	}
	report(100)
	return nil
}

// cutover replaces the installed model with the target log
func (u *Upgrader) cutover(ctx context.Context, r *run) error {
	report := r.rep.Range(progress.For(progress.PhaseCutover))
	if u.cfg.SkipTxUpdate {
		u.log.Log("skipping model update", "workspace", u.cfg.Workspace)
		report(100)
		return nil
	}

	return u.step(r, progress.PhaseCutover, cutoverOperation, func() error {
		adapter, err := store.Lookup(u.cfg.Adapters, store.DomainModel)
		if err != nil {
			return err
		}

		u.log.Log("removing model...", "workspace", u.cfg.Workspace)
		existing, err := adapter.RawFindAll(ctx, store.DomainModel, nil)
		if err != nil {
			return fmt.Errorf("reading installed model: %w", err)
		}
		ids := make([]string, len(existing))
		for i, d := range existing {
			ids[i] = d.ID
		}
		if err := adapter.Clean(ctx, store.DomainModel, ids); err != nil {
			return fmt.Errorf("removing installed model: %w", err)
		}
		report(50)

		if err := adapter.Upload(ctx, store.DomainModel, txlog.ToDocs(u.cfg.Txes)); err != nil {
			return fmt.Errorf("installing model: %w", err)
		}
		u.log.Log("model transactions inserted.", "workspace", u.cfg.Workspace, "count", len(u.cfg.Txes))
		report(100)
		return nil
	})
}

func (u *Upgrader) rebuildIndexes(ctx context.Context, r *run, report func(float64)) error {
	results, err := indexes.Rebuild(ctx, r.model.Hierarchy, u.cfg.Adapters, report)
	r.res.Indexes = append(r.res.Indexes, results...)
	if err != nil {
		return err
	}
	r.indexesRebuilt = true
	return nil
}

func (u *Upgrader) forceIndexes(ctx context.Context, r *run) error {
	report := r.rep.Range(progress.For(progress.PhaseForceIndexes))
	if u.cfg.ForceIndexes {
		err := u.step(r, progress.PhaseForceIndexes, "indexes", func() error {
			return u.rebuildIndexes(ctx, r, report)
		})
		if err != nil {
			return err
		}
	}
	report(100)
	return nil
}

func (u *Upgrader) migrate(ctx context.Context, r *run, client *migration.Client) error {
	report := r.rep.Range(progress.For(progress.PhaseMigrate))
	ops := u.cfg.Operations
	for i, op := range ops {
		if op.Migrate != nil {
			fn := op.Migrate
			err := u.step(r, progress.PhaseMigrate, op.Name, func() error {
				return fn(ctx, client.ForPlugin(op.Name), u.log)
			})
			if err != nil {
				return err
			}
		}
		report(progress.Step(i+1, len(ops)))
	}
	report(100)
	return nil
}

// catchUp runs the core steps every workspace gets exactly once
func (u *Upgrader) catchUp(ctx context.Context, r *run, client *migration.Client) error {
	rng := progress.For(progress.PhaseCatchUp)
	indexRange := r.rep.Range(rng.Sub(0, 80))

	err := u.step(r, progress.PhaseCatchUp, CorePlugin, func() error {
		return migration.TryMigrate(ctx, client, CorePlugin, []migration.MigrateStep{
			{
				State: StateIndexes,
				Func: func(ctx context.Context, c *migration.Client) error {
					if r.indexesRebuilt {
						return nil
					}
					u.log.Log("migrate indexes", "workspace", u.cfg.Workspace)
					return u.rebuildIndexes(ctx, r, indexRange)
				},
			},
			{
				State: StateDeleteModel,
				Func: func(ctx context.Context, c *migration.Client) error {
					return u.deleteModel(ctx, c, u.preserve)
				},
			},
		})
	})
	if err != nil {
		return err
	}
	r.rep.Phase(progress.PhaseCatchUp, 100)
	return nil
}

// deleteModel removes system-authored model txes the policy does not keep
func (u *Upgrader) deleteModel(ctx context.Context, c *migration.Client, policy PreservePolicy) error {
	docs, err := c.Find(ctx, store.DomainTx, store.Filter{"objectSpace": txlog.SpaceModel})
	if err != nil {
		return err
	}

	var ids []string
	for _, d := range docs {
		if !policy.IsUserTx(txlog.FromDoc(d)) {
			ids = append(ids, d.ID)
		}
	}
	u.log.Log("compacting model transactions", "workspace", u.cfg.Workspace, "found", len(docs), "deleted", len(ids))
	return c.DeleteMany(ctx, store.DomainTx, ids)
}

// upgradeAndFinalize runs the live phase. The connection, if opened, is
// released on every path out of this function.
func (u *Upgrader) upgradeAndFinalize(ctx context.Context, r *run, state migration.State) (err error) {
	connector := live.NewConnector(u.cfg.Dial)
	defer func() {
		r.res.Connected = connector.Connected()
		start := time.Now()
		if rerr := connector.Release(ctx); rerr != nil {
			err = errors.Join(err, u.stepError(progress.PhaseFinalize, releaseOperation, start, rerr))
		}
	}()

	connect := func(ctx context.Context) (live.Conn, error) {
		return connector.Get(ctx)
	}

	report := r.rep.Range(progress.For(progress.PhaseUpgrade))
	ops := u.cfg.Operations
	for i, op := range ops {
		if op.Upgrade != nil {
			fn := op.Upgrade
			err := u.step(r, progress.PhaseUpgrade, op.Name, func() error {
				return fn(ctx, state.Clone(), connect, u.log)
			})
			if err != nil {
				return err
			}
		}
		report(progress.Step(i+1, len(ops)))
	}
	report(100)

	if !connector.Connected() {
		u.notify(ctx, r)
	}
	r.rep.Phase(progress.PhaseFinalize, 50)
	return nil
}

// notify sends the best-effort force-close. Its failure is recorded, never returned.
func (u *Upgrader) notify(ctx context.Context, r *run) {
	if u.cfg.Notifier == nil {
		u.logger.Warn("no notifier configured, running instance keeps the old model")
		return
	}

	u.logger.Info("send force close")
	r.res.Notified = true
	if err := u.cfg.Notifier.ForceClose(ctx, u.cfg.Workspace); err != nil {
		r.res.NotifyError = err
		u.logger.Warn("force close notification failed", "error", err)
	}
}
