// ABOUTME: Builds stores, signers, dialers and upgraders from the loaded configuration
// ABOUTME: Shared by every command so they wire the same components the same way

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/2389/coven-migrate/internal/auth"
	"github.com/2389/coven-migrate/internal/config"
	"github.com/2389/coven-migrate/internal/live"
	"github.com/2389/coven-migrate/internal/migration"
	"github.com/2389/coven-migrate/internal/progress"
	"github.com/2389/coven-migrate/internal/storage"
	"github.com/2389/coven-migrate/internal/store"
	"github.com/2389/coven-migrate/internal/txlog"
	"github.com/2389/coven-migrate/internal/upgrade"
)

// openAdapters opens the default database and one store per routed path.
// Routes sharing a path share a store.
func openAdapters(cfg config.DatabaseConfig) (*store.AdapterManager, error) {
	fallback, err := store.NewSQLiteStoreWithDriver(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Path, err)
	}

	manager := store.NewAdapterManager(fallback)
	byPath := map[string]*store.SQLiteStore{cfg.Path: fallback}

	domains := make([]string, 0, len(cfg.Routes))
	for domain := range cfg.Routes {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	for _, domain := range domains {
		path := cfg.Routes[domain]
		s, ok := byPath[path]
		if !ok {
			s, err = store.NewSQLiteStoreWithDriver(cfg.Driver, path)
			if err != nil {
				return nil, errors.Join(fmt.Errorf("opening database %s for domain %s: %w", path, domain, err), manager.Close())
			}
			byPath[path] = s
		}
		manager.Route(store.Domain(domain), s)
	}

	return manager, nil
}

// loadTxes reads the target model log from a JSON file
func loadTxes(path string) ([]txlog.Tx, error) {
	if path == "" {
		return nil, errors.New("--model is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model file: %w", err)
	}
	defer f.Close()

	txes, err := txlog.ReadTxes(f)
	if err != nil {
		return nil, fmt.Errorf("reading model file %s: %w", path, err)
	}
	return txes, nil
}

func newSigner(cfg config.AuthConfig) (*auth.JWTSigner, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	return auth.NewJWTSigner([]byte(cfg.JWTSecret), cfg.TokenTTL)
}

// liveDialer dials the transactor with the configured timeout, or returns nil
// when no transactor is configured
func liveDialer(cfg *config.Config, signer auth.TokenSigner, logger *slog.Logger) live.DialFunc {
	if cfg.Transactor.URL == "" || signer == nil {
		return nil
	}
	dial := live.Dialer(live.DialConfig{
		Endpoint:  cfg.Transactor.URL,
		Workspace: cfg.Workspace,
		Signer:    signer,
		Logger:    logger,
	})
	timeout := cfg.Transactor.DialTimeout
	return func(ctx context.Context) (live.Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return dial(ctx)
	}
}

// notifyEndpoint prefers the explicit HTTP URL over the transactor URL
func notifyEndpoint(cfg config.TransactorConfig) string {
	if cfg.HTTPURL != "" {
		return cfg.HTTPURL
	}
	return cfg.URL
}

// stepLogger returns the logger handed to migration steps and a close func
// for the optional log file
func stepLogger(cfg config.MigrationConfig, logger *slog.Logger) (migration.Logger, func() error, error) {
	base := migration.NewSlogLogger(logger)
	if cfg.LogFile == "" {
		return base, func() error { return nil }, nil
	}
	file, err := migration.NewFileLogger(cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return migration.Tee(base, file), file.Close, nil
}

// upgradeOptions carries command-line overrides of the migration section
type upgradeOptions struct {
	skipTxUpdate bool
	forceIndexes bool
}

// newUpgrader wires a configured upgrader. The caller owns closing the step log.
func newUpgrader(cfg *config.Config, txes []txlog.Tx, adapters upgrade.Adapters, stepLog migration.Logger, sink progress.Sink, opts upgradeOptions, logger *slog.Logger) (*upgrade.Upgrader, error) {
	ucfg := upgrade.Config{
		Workspace:           cfg.Workspace,
		Txes:                txes,
		Operations:          migration.DefaultRegistry.Operations(),
		Adapters:            adapters,
		Logger:              stepLog,
		Progress:            sink,
		SkipTxUpdate:        cfg.Migration.SkipTxUpdate || opts.skipTxUpdate,
		ForceIndexes:        cfg.Migration.ForceIndexes || opts.forceIndexes,
		PreserveClasses:     cfg.Migration.PreserveClasses,
		InitPreserveClasses: cfg.Migration.InitPreserveClasses,
	}

	if cfg.Auth.JWTSecret != "" {
		signer, err := newSigner(cfg.Auth)
		if err != nil {
			return nil, err
		}
		ucfg.Dial = liveDialer(cfg, signer, logger)
		if endpoint := notifyEndpoint(cfg.Transactor); endpoint != "" {
			ucfg.Notifier = live.NewHTTPNotifier(endpoint, signer, nil)
		}
	}

	if cfg.Storage.BucketRoot != "" {
		ucfg.Provisioner = storage.NewFSProvisioner(cfg.Storage.BucketRoot)
	}

	return upgrade.New(ucfg)
}
