package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/john2100013/kpi-review/internal/api"
	"github.com/john2100013/kpi-review/internal/cache"
	"github.com/john2100013/kpi-review/internal/clock"
	"github.com/john2100013/kpi-review/internal/config"
	"github.com/john2100013/kpi-review/internal/document"
	"github.com/john2100013/kpi-review/internal/notify"
	"github.com/john2100013/kpi-review/internal/repository"
	"github.com/john2100013/kpi-review/internal/service/scheduler"
	"github.com/john2100013/kpi-review/internal/service/workflow"
	"github.com/john2100013/kpi-review/internal/storage"
	"github.com/john2100013/kpi-review/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	db, err := repository.NewDB(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}()
	if err := db.AutoMigrate(); err != nil {
		return err
	}

	var locker cache.Locker
	if cfg.Database.Redis.Enabled {
		client, err := cache.NewClient(ctx, &cfg.Database.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		locker = cache.NewRedisLocker(client, "kpi-review:")
		log.Info().Str("addr", cfg.Database.Redis.Addr()).Msg("Redis sweep locks enabled")
	}

	catalog, err := notify.DefaultCatalog()
	if err != nil {
		return err
	}
	dispatcher := notify.NewFromConfig(&cfg.Notifications, catalog, log)
	runner := notify.NewRunner(cfg.Notifications.SendTimeout*3, log)
	clk := clock.Real{}

	var documents workflow.DocumentPublisher
	if cfg.Documents.Enabled {
		store, err := storage.New(ctx, &cfg.Documents)
		if err != nil {
			return err
		}
		documents = document.NewPublisher(db, document.NewPDFGenerator(), store, clk, log)
		log.Info().Str("storage", cfg.Documents.Storage).Msg("Review documents enabled")
	}

	svc := workflow.NewService(db, catalog, dispatcher, runner, documents, clk, log)

	sched := scheduler.NewService(&cfg.Scheduler, db, catalog, dispatcher, locker, clk, log)
	if err := sched.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(cfg, db, svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("environment", cfg.Server.Environment).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-serveErr:
		sched.Stop()
		return fmt.Errorf("http server failed: %w", err)
	}

	// A running sweep finishes its current tenant before Stop returns.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server forced to shutdown")
	}
	if err := runner.Drain(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Detached effects did not finish")
	}
	return nil
}
