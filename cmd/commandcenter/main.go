// Command commandcenter runs the ops platform control-plane core: event
// ingestion, rule evaluation, webhook delivery, and live fan-out, backed
// by a single embedded SQLite database file.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	_ "modernc.org/sqlite"

	"github.com/aetherlink/commandcenter/internal/api"
	"github.com/aetherlink/commandcenter/internal/audit"
	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/config"
	"github.com/aetherlink/commandcenter/internal/delivery"
	"github.com/aetherlink/commandcenter/internal/evaluator"
	"github.com/aetherlink/commandcenter/internal/eventstore"
	"github.com/aetherlink/commandcenter/internal/fanout"
	"github.com/aetherlink/commandcenter/internal/ingestion"
	"github.com/aetherlink/commandcenter/internal/observability"
	"github.com/aetherlink/commandcenter/internal/ops"
	"github.com/aetherlink/commandcenter/internal/retention"
	"github.com/aetherlink/commandcenter/internal/rulestore"
	"github.com/aetherlink/commandcenter/internal/webhookclient"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := config.Load()
	if err != nil {
		return ccerrors.Fatal(err)
	}

	log := observability.NewLogger(settings.LogLevel, os.Stdout)

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	otel.SetMeterProvider(meterProvider)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics provider shutdown failed")
		}
	}()

	db, err := openDB(settings.EventDBPath)
	if err != nil {
		return ccerrors.Fatal(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	events, err := eventstore.Open(ctx, db)
	if err != nil {
		return ccerrors.Fatal(err)
	}
	schemas := eventstore.NewRegistry()
	eventstore.RegisterBuiltins(schemas)

	rules, err := rulestore.Open(ctx, db)
	if err != nil {
		return ccerrors.Fatal(err)
	}

	queue, err := delivery.Open(ctx, db)
	if err != nil {
		return ccerrors.Fatal(err)
	}

	dedup, err := delivery.OpenDedup(ctx, db, settings.DedupWindow)
	if err != nil {
		return ccerrors.Fatal(err)
	}

	auditStore, err := audit.Open(ctx, db)
	if err != nil {
		return ccerrors.Fatal(err)
	}

	counters := &observability.Counters{}
	recorder := observability.NewRecorder()
	serviceReg := ops.NewRegistry()

	hub := fanout.New(func(subscriberID string) {
		counters.IncFanoutDropped()
		recorder.RecordFanoutDrop(ctx, subscriberID)
	})

	poster := webhookclient.New()

	dispatcher := delivery.NewDispatcher(queue, events, schemas, hub, poster, counters, recorder, serviceReg, log)
	eval := evaluator.New(rules, events, schemas, dedup, queue, hub, settings.AlertWebhooks, counters, recorder, serviceReg, log)
	retentionWorker := retention.New(events, schemas, hub, settings.RetentionInterval, retentionPolicy(settings), serviceReg, log)
	intake := ingestion.New(events, schemas, hub, counters, recorder, log)

	router := api.NewRouter(api.Deps{
		Events: events, Rules: rules, Queue: queue, Audit: auditStore, Hub: hub,
		Intake: intake, Evaluator: eval, ServiceReg: serviceReg, Log: log,
	})

	server := &http.Server{
		Addr:    settings.HTTPAddr,
		Handler: router,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); eval.Run(ctx) }()
	go func() { defer wg.Done(); dispatcher.Run(ctx) }()
	go func() { defer wg.Done(); retentionWorker.Run(ctx) }()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", settings.HTTPAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	wg.Wait()
	return nil
}

// openDB creates the database file with restrictive permissions before
// sql.Open ever touches it, closing a TOCTOU window where the file would
// briefly be world-readable, then enables WAL mode for concurrent reads
// alongside the dispatcher/evaluator/retention writers.
func openDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if createErr == nil {
			f.Close()
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

func retentionPolicy(settings config.Settings) retention.Policy {
	return retention.Policy{"": time.Duration(settings.RetentionDays) * 24 * time.Hour}
}
