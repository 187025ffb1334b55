package main

import (
	"context"
	"errors"
	"fmt"
	"go-batch-harness/internal/catalog"
	"go-batch-harness/internal/config"
	"go-batch-harness/internal/delay"
	"go-batch-harness/internal/health"
	"go-batch-harness/internal/metrics"
	"go-batch-harness/internal/models"
	"go-batch-harness/internal/units"
	"go-batch-harness/internal/worker"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	longUnit  = 10 * time.Second
	shortUnit = 100 * time.Millisecond

	cancelAfter    = 2 * time.Second
	demoDelay      = 10 * time.Second
	httpClientWait = 30 * time.Second
)

type App struct {
	ctx      context.Context
	cfg      *config.Config
	catalog  catalog.CatalogService
	executor worker.BatchExecutorService
}

func SetupLogger(level slog.Level) {
	w := os.Stderr
	logger := slog.New(
		tint.NewHandler(w, &tint.Options{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if err, ok := a.Value.Any().(error); ok {
					aErr := tint.Err(err)
					aErr.Key = a.Key
					return aErr
				}
				return a
			},
		}),
	)
	slog.SetDefault(logger)
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		SetupLogger(slog.LevelInfo)
		slog.Error("Failed to load config", "error", err)
		os.Exit(78)
	}
	SetupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-signalCh:
			slog.Info("Received termination signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("Running batch harness", "deadline", cfg.UnitDeadline, "maxInFlight", cfg.MaxInFlight)

	fetcher := units.NewFetcher(&http.Client{Timeout: httpClientWait}, cfg.ProbeURL)
	cat, err := catalog.NewCatalog(longUnit, shortUnit, fetcher)
	if err != nil {
		slog.Error("Failed to create catalog", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	executor := worker.NewBatchExecutor(
		worker.NewRunner(slog.Default()),
		worker.WithMaxInFlight(cfg.MaxInFlight),
		worker.WithMetrics(metrics.New(reg)),
		worker.WithOnSuccess(func(o models.Outcome) {
			slog.Info("[Completed]", "unit", o.Name, "msg", o.Result.Msg, "isOk", o.Result.IsOk)
		}),
	)

	if cfg.HealthAddr != "" {
		srv := health.NewServer(cfg.HealthAddr, executor, reg, slog.Default())
		go func() {
			if err := srv.Run(ctx); err != nil {
				slog.Error("Health server failed", "error", err)
			}
		}()
	}

	app := App{
		ctx:      ctx,
		cfg:      cfg,
		catalog:  cat,
		executor: executor,
	}
	if err := app.run(); err != nil {
		os.Exit(1)
	}
}

func (app App) run() error {
	report, err := app.executor.ExecuteAll(app.ctx, app.catalog.Batch(), app.cfg.UnitDeadline)
	if errors.Is(err, worker.ErrInvalidArgument) {
		slog.Error("Batch rejected", "error", err)
		return err
	}
	if err != nil {
		slog.Error("Batch failed", "error", err)
	}

	fmt.Println("WARN: INCOMPLETE TASKS:")
	for _, line := range report.Lines() {
		fmt.Println(line)
	}
	if err != nil {
		return err
	}

	return app.demoDelay()
}

// demoDelay runs the cancellable delay twice with the same signal, set by a
// timer after cancelAfter and cleared in between.
func (app App) demoDelay() error {
	sig := delay.NewSignal()
	for i, label := range []string{"Sleep", "Sleep with early cancellation"} {
		if i > 0 {
			sig.Clear()
		}
		slog.Info("Starting "+label, "duration", demoDelay, "cancelAfter", cancelAfter)
		stop := sig.SetAfter(cancelAfter)
		err := delay.Delay(app.ctx, demoDelay, sig)
		stop()
		switch {
		case errors.Is(err, delay.ErrCancelled):
			slog.Info(label + " cancelled.")
		case err != nil:
			slog.Warn(label+" interrupted", "error", err)
			return err
		default:
			slog.Info(label + " finished.")
		}
	}
	return nil
}
