// Command trailcore runs the offline-first recorder core: local store,
// sync engine, connectivity monitor, and the HTTP API the recorder UI
// talks to.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memorytrail/trailcore/cmd/trailcore/handlers"
	"github.com/memorytrail/trailcore/internal/archive"
	"github.com/memorytrail/trailcore/internal/config"
	"github.com/memorytrail/trailcore/internal/db"
	"github.com/memorytrail/trailcore/internal/finalize"
	"github.com/memorytrail/trailcore/internal/logging"
	"github.com/memorytrail/trailcore/internal/netwatch"
	"github.com/memorytrail/trailcore/internal/remote"
	syncpkg "github.com/memorytrail/trailcore/internal/sync"
	"github.com/memorytrail/trailcore/internal/sync/queue"
	"github.com/memorytrail/trailcore/internal/sync/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("failed to load configuration", err)
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logging.Init(os.Stdout, level)

	if err := run(cfg); err != nil {
		logging.Error("fatal", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.NewMigrator(database).Migrate(); err != nil {
		return err
	}

	store := db.NewStore(database)
	outbox := queue.NewOutbox(database)
	client := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteAPIKey, cfg.RequestTimeout, cfg.POIBucket, cfg.BrochureBucket)
	engine := syncpkg.NewEngine(store, outbox, client, cfg.QueueBatchSize)

	probe := func(ctx context.Context) bool {
		if cfg.RemoteBaseURL == "" {
			return false
		}
		return client.Healthy(ctx)
	}
	monitor := netwatch.New(probe, cfg.ProbeInterval)
	sched := scheduler.New(engine, cfg.SyncInterval, monitor.Online)

	// Regaining connectivity drains whatever accumulated offline.
	monitor.OnChange(func(online bool) {
		if online {
			sched.TriggerSync()
		}
	})

	monitor.Start(ctx)
	defer monitor.Stop()
	sched.Start(ctx)
	defer sched.Stop()

	h := handlers.New(
		store,
		outbox,
		engine,
		sched,
		monitor,
		archive.NewReconciler(store),
		archive.NewExporter(store),
		finalize.New(store, client, monitor.Online),
	)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("api listening", map[string]interface{}{
			"addr": cfg.ListenAddr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
