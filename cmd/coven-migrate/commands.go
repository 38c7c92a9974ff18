// ABOUTME: Command implementations for coven-migrate
// ABOUTME: Each command parses its own flags, loads config and wires the internal packages

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-migrate/internal/auth"
	"github.com/2389/coven-migrate/internal/config"
	"github.com/2389/coven-migrate/internal/indexes"
	"github.com/2389/coven-migrate/internal/live"
	"github.com/2389/coven-migrate/internal/metrics"
	"github.com/2389/coven-migrate/internal/progress"
	"github.com/2389/coven-migrate/internal/report"
	"github.com/2389/coven-migrate/internal/txlog"
	"github.com/2389/coven-migrate/internal/upgrade"
)

// env holds what every command needs after flag parsing
type env struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", getConfigPath(), "Path to the config file (.yaml, .yml or .toml)")
	return fs, configPath
}

func loadEnv(configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	return &env{configPath: configPath, cfg: cfg, logger: logger}, nil
}

func printStartup(e *env, extra ...string) {
	green := color.New(color.FgGreen)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Config:    %s\n", e.configPath)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Workspace: %s\n", e.cfg.Workspace)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "Database:  %s (%s)\n", e.cfg.Database.Path, e.cfg.Database.Driver)
	for i := 0; i+1 < len(extra); i += 2 {
		green.Fprint(os.Stderr, "    ▶ ")
		fmt.Fprintf(os.Stderr, "%-10s %s\n", extra[i]+":", extra[i+1])
	}
	fmt.Fprintln(os.Stderr)
}

// progressPrinter logs each whole percent once
func progressPrinter(logger *slog.Logger) progress.Sink {
	last := -1
	return func(value float64) {
		pct := int(value)
		if pct == last {
			return
		}
		last = pct
		logger.Info("progress", "percent", pct)
	}
}

func runUpgrade(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("upgrade")
	modelPath := fs.String("model", "", "JSON file holding the target model txes")
	reportPath := fs.String("report", "", "Write a run report (.md or .html)")
	skipTxUpdate := fs.Bool("skip-tx-update", false, "Leave the installed model untouched")
	forceIndexes := fs.Bool("force-indexes", false, "Rebuild indexes before migrating")
	if err := fs.Parse(args); err != nil {
		return err
	}

	printBanner()
	e, err := loadEnv(*configPath)
	if err != nil {
		return err
	}
	txes, err := loadTxes(*modelPath)
	if err != nil {
		return err
	}
	printStartup(e, "Model", *modelPath, "Live", e.cfg.Transactor.URL)

	adapters, err := openAdapters(e.cfg.Database)
	if err != nil {
		return err
	}
	defer adapters.Close()

	stepLog, closeLog, err := stepLogger(e.cfg.Migration, e.logger)
	if err != nil {
		return err
	}
	defer closeLog()

	u, err := newUpgrader(e.cfg, txes, adapters, stepLog, progressPrinter(e.logger), upgradeOptions{
		skipTxUpdate: *skipTxUpdate,
		forceIndexes: *forceIndexes,
	}, e.logger)
	if err != nil {
		return err
	}

	res, runErr := u.UpgradeModel(ctx)
	if *reportPath != "" {
		if err := report.WriteFile(*reportPath, res, runErr); err != nil {
			e.logger.Error("failed to write report", "path", *reportPath, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	printSummary(res)
	return nil
}

func runInit(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("init")
	modelPath := fs.String("model", "", "JSON file holding the model txes")
	deleteFirst := fs.Bool("delete-first", false, "Remove system model txes before installing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	printBanner()
	e, err := loadEnv(*configPath)
	if err != nil {
		return err
	}
	txes, err := loadTxes(*modelPath)
	if err != nil {
		return err
	}
	printStartup(e, "Model", *modelPath, "Buckets", e.cfg.Storage.BucketRoot)

	adapters, err := openAdapters(e.cfg.Database)
	if err != nil {
		return err
	}

	stepLog, closeLog, err := stepLogger(e.cfg.Migration, e.logger)
	if err != nil {
		return errors.Join(err, adapters.Close())
	}
	defer closeLog()

	u, err := newUpgrader(e.cfg, txes, adapters, stepLog, progressPrinter(e.logger), upgradeOptions{}, e.logger)
	if err != nil {
		return errors.Join(err, adapters.Close())
	}

	// InitModel closes the adapters itself
	res, err := u.InitModel(ctx, *deleteFirst)
	if err != nil {
		return err
	}

	printSummary(res)
	return nil
}

// runUpdate runs upgrade operations and the index rebuild against a live workspace
func runUpdate(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("update")
	modelPath := fs.String("model", "", "JSON file holding the model txes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	printBanner()
	e, err := loadEnv(*configPath)
	if err != nil {
		return err
	}
	if e.cfg.Transactor.URL == "" {
		return errors.New("transactor.url is required for update")
	}
	txes, err := loadTxes(*modelPath)
	if err != nil {
		return err
	}
	printStartup(e, "Model", *modelPath, "Live", e.cfg.Transactor.URL)

	adapters, err := openAdapters(e.cfg.Database)
	if err != nil {
		return err
	}
	defer adapters.Close()

	stepLog, closeLog, err := stepLogger(e.cfg.Migration, e.logger)
	if err != nil {
		return err
	}
	defer closeLog()

	u, err := newUpgrader(e.cfg, txes, adapters, stepLog, progressPrinter(e.logger), upgradeOptions{}, e.logger)
	if err != nil {
		return err
	}

	signer, err := newSigner(e.cfg.Auth)
	if err != nil {
		return err
	}
	conn, err := liveDialer(e.cfg, signer, e.logger)(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := u.UpdateModel(ctx, conn)
	if err != nil {
		return err
	}

	printSummary(res)
	return nil
}

func runIndexes(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("indexes")
	modelPath := fs.String("model", "", "JSON file holding the model txes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := loadEnv(*configPath)
	if err != nil {
		return err
	}
	txes, err := loadTxes(*modelPath)
	if err != nil {
		return err
	}

	model, err := txlog.BuildModel(e.logger, txes)
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}

	adapters, err := openAdapters(e.cfg.Database)
	if err != nil {
		return err
	}
	defer adapters.Close()

	results, err := indexes.Rebuild(ctx, model.Hierarchy, adapters, progressPrinter(e.logger))
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	for _, r := range results {
		cyan.Printf("  %-24s", r.Domain)
		fmt.Printf(" estimate=%-8d created=%d (%s)\n", r.Estimate, len(r.Created), r.Elapsed.Round(time.Millisecond))
	}
	return nil
}

func runToken(args []string) error {
	fs, configPath := newFlagSet("token")
	email := fs.String("email", auth.SystemAccountEmail, "Account email carried by the token")
	ttl := fs.Duration("ttl", 0, "Token lifetime (default: auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := loadEnv(*configPath)
	if err != nil {
		return err
	}
	signer, err := newSigner(e.cfg.Auth)
	if err != nil {
		return err
	}

	lifetime := e.cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	token, err := signer.GenerateWithTTL(*email, e.cfg.Workspace, auth.UpgradeExtra(), lifetime)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// controlMux serves the manage endpoint and the metrics registry
func controlMux(srv *live.ControlServer, tokens auth.TokenVerifier) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(live.ManagePath, srv.ManageHandler(tokens))
	mux.Handle(metrics.Path, metrics.Handler())
	return mux
}

func runServeControl(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("serve-control")
	grpcAddr := fs.String("grpc-addr", "localhost:50051", "gRPC listen address")
	httpAddr := fs.String("http-addr", "localhost:8080", "HTTP listen address for the manage endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	printBanner()
	e, err := loadEnv(*configPath)
	if err != nil {
		return err
	}
	signer, err := newSigner(e.cfg.Auth)
	if err != nil {
		return err
	}
	printStartup(e, "gRPC", *grpcAddr, "HTTP", *httpAddr)

	adapters, err := openAdapters(e.cfg.Database)
	if err != nil {
		return err
	}
	defer adapters.Close()

	onForceClose := func(ctx context.Context, workspace string) error {
		e.logger.Warn("workspace force-closed, clients must reconnect", "workspace", workspace)
		return nil
	}
	srv := live.NewControlServer(e.cfg.Workspace, adapters, onForceClose, e.logger)

	grpcServer := srv.NewGRPCServer(signer)
	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           controlMux(srv, signer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", *grpcAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.logger.Info("gRPC control server listening", "addr", *grpcAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		e.logger.Info("HTTP manage endpoint listening", "addr", *httpAddr, "path", live.ManagePath, "metrics", metrics.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		e.logger.Info("shutting down control server")
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func printSummary(res *upgrade.Result) {
	green := color.New(color.FgGreen, color.Bold)
	gray := color.New(color.FgHiBlack)

	fmt.Fprintln(os.Stderr)
	green.Fprintf(os.Stderr, "    ✓ %s done in %s\n", res.Workspace, res.Duration.Round(time.Millisecond))
	gray.Fprintf(os.Stderr, "      %d steps, %d index domains, %d model txes\n", len(res.Steps), len(res.Indexes), res.Txes)
	if res.NotifyError != nil {
		color.New(color.FgYellow).Fprintf(os.Stderr, "      force-close notification failed: %v\n", res.NotifyError)
	}
}
