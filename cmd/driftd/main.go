// Command driftd runs the drive mirror and reconciliation service:
// Bootstrap and Notification Sink HTTP endpoints, plus a background
// Reconciliation Worker pool and subscription renewal loop. Startup
// sequencing follows the same shape as a provider-client bootstrap
// (build logger, build provider client, wire dependencies), collapsed
// from a multi-command CLI tree into a single process entry point —
// this service has two routes and one worker loop, not fifteen
// subcommands (see DESIGN.md).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/drive-mirror/internal/api"
	"github.com/tonimelisma/drive-mirror/internal/config"
	"github.com/tonimelisma/drive-mirror/internal/gate"
	"github.com/tonimelisma/drive-mirror/internal/provider"
	"github.com/tonimelisma/drive-mirror/internal/reconcile"
	"github.com/tonimelisma/drive-mirror/internal/store"
	"github.com/tonimelisma/drive-mirror/internal/subscription"
	"github.com/tonimelisma/drive-mirror/internal/worker"
)

const (
	httpClientTimeout = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(bootLogger); err != nil {
		bootLogger.Error("driftd: fatal startup error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(bootLogger *slog.Logger) error {
	cfg, err := config.Load(bootLogger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := config.BuildLogger(*cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDSN, logger)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: httpClientTimeout}
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Bearer})
	providerClient := provider.NewClient(cfg.ProviderBaseURL, httpClient, tokens, logger)

	credGate := gate.New(providerClient)
	if cfg.DeltaEnabled {
		credGate.Enable()
	}

	subs := subscription.New(st, providerClient, cfg.NotifyURL, cfg.SharedSecretFloor, logger)
	engine := reconcile.New(st, providerClient, logger)
	queue := worker.NewChannelQueue(cfg.QueueCapacity)
	pool := worker.New(queue, credGate, engine, logger, cfg.WorkerConcurrency)

	handler := api.New(credGate, providerClient, subs, subs, engine, queue, logger)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pool.Run(gctx)
	})

	g.Go(func() error {
		runRenewalLoop(gctx, providerClient, subs, logger)
		return nil
	})

	g.Go(func() error {
		logger.Info("driftd: listening", slog.String("addr", cfg.ListenAddr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	<-gctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("driftd: graceful shutdown failed", slog.String("error", err.Error()))
	}

	return g.Wait()
}

// runRenewalLoop resolves the default drive's watched resource and runs
// the subscription renewal loop for it. Resolution happens once, at
// startup: if it fails (for example the bearer is rejected or the
// provider is unreachable), this logs a warning and returns without
// looping. /bootstrap still works independently, but the resource gets
// no background renewal until driftd is restarted.
func runRenewalLoop(ctx context.Context, drives *provider.Client, subs *subscription.Manager, logger *slog.Logger) {
	driveID, err := drives.ResolveDefaultDrive(ctx)
	if err != nil {
		logger.Warn("driftd: skipping renewal loop, default drive not resolvable yet",
			slog.String("error", err.Error()))

		return
	}

	subs.RunRenewalLoop(ctx, api.ResourceForDrive(driveID))
}
