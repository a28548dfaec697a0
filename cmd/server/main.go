package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/Scylla-Station/Scylla-Station/internal/config"
	"github.com/Scylla-Station/Scylla-Station/internal/i18n"
	"github.com/Scylla-Station/Scylla-Station/internal/logging"
	persistlog "github.com/Scylla-Station/Scylla-Station/internal/persistence/log"
	"github.com/Scylla-Station/Scylla-Station/internal/persistence/profiledb"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/catalogs"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/world"
	"github.com/Scylla-Station/Scylla-Station/internal/transport/ws"
)

func main() {
	fs := pflag.NewFlagSet("server", pflag.ExitOnError)
	cfg, err := config.Load(fs, os.Args[1:], nil)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Warnf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Defaults()
	}
	texts, err := i18n.LoadEmbedded()
	if err != nil {
		logger.Fatalf("load locales: %v", err)
	}

	w, err := world.New(world.ConfigFromTuning("station", tune, cfg.Seed), cats, texts)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(logger)

	db, err := profiledb.OpenSQLite(cfg.DBPath, logger)
	if err != nil {
		logger.Fatalf("open profile db: %v", err)
	}
	w.SetProfileSink(db)

	if !cfg.NoAudit {
		auditLog := persistlog.NewAuditLogger(cfg.DataDir)
		runID := persistlog.NewRunID(time.Now())
		tickLog := persistlog.NewTickLogger(persistlog.RunDir(cfg.DataDir, runID))
		logger.WithField("run", runID).Info("tick log enabled")
		defer auditLog.Close()
		defer tickLog.Close()
		w.SetAuditLogger(auditLog)
		w.SetTickLogger(tickLog)
	}

	logger.WithFields(logrus.Fields{
		"topics":   len(cats.Consents.Order),
		"digest":   cats.Consents.Digest,
		"delivery": tune.ViewDelivery,
		"tick_hz":  tune.TickRateHz,
		"db":       cfg.DBPath,
	}).Info("world ready")

	ctx, cancel := signalContext()
	defer cancel()
	go reloadOnHUP(ctx, w, cfg.ConfigDir, logger)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("world stopped")
		}
	}()

	wsSrv, err := ws.NewServer(w, logger, ws.Options{
		Profiles:     db,
		AuthToken:    cfg.AuthToken,
		DefaultQueue: tune.MaxQueue,
	})
	if err != nil {
		logger.Fatalf("ws: %v", err)
	}
	mux := newMux(w, cfg.ConfigDir, logger)
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Infof("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The world is the only writer to the profile sink; it must be stopped
	// before the queue is drained and closed.
	cancel()
	<-runDone
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := db.Flush(flushCtx); err != nil {
		logger.WithError(err).Warn("profile db flush")
	}
	if err := db.Close(); err != nil {
		logger.WithError(err).Warn("profile db close")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// reloadOnHUP re-reads the consent prototypes whenever the process gets SIGHUP.
func reloadOnHUP(ctx context.Context, w *world.World, configDir string, logger logrus.FieldLogger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if _, _, err := reloadCatalogs(ctx, w, configDir); err != nil {
				logger.WithError(err).WithField("dir", filepath.Join(configDir, "consent")).Error("catalog reload failed")
			}
		}
	}
}

func reloadCatalogs(ctx context.Context, w *world.World, configDir string) (int, string, error) {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return 0, "", err
	}
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	added, err := w.ReloadCatalogs(ctx2, cats)
	return added, cats.Consents.Digest, err
}
