package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"trafficase/internal/appeal"
	appealhandler "trafficase/internal/appeal/handler"
	appealmetrics "trafficase/internal/appeal/metrics"
	"trafficase/internal/idempotency"
	idemhandler "trafficase/internal/idempotency/handler"
	idemmetrics "trafficase/internal/idempotency/metrics"
	"trafficase/internal/ledger"
	"trafficase/internal/offense"
	offensehandler "trafficase/internal/offense/handler"
	offensemetrics "trafficase/internal/offense/metrics"
	"trafficase/internal/payment"
	paymenthandler "trafficase/internal/payment/handler"
	paymentmetrics "trafficase/internal/payment/metrics"
	"trafficase/internal/platform/config"
	"trafficase/internal/platform/httpserver"
	"trafficase/internal/platform/logger"
	"trafficase/internal/platform/postgres"
	"trafficase/internal/platform/redis"
	"trafficase/internal/workflow"
	workflowhandler "trafficase/internal/workflow/handler"
	workflowmetrics "trafficase/internal/workflow/metrics"
	"trafficase/pkg/platform/audit"
	"trafficase/pkg/platform/audit/publisher"
	kafkasink "trafficase/pkg/platform/audit/sink/kafka"
	memorysink "trafficase/pkg/platform/audit/sink/memory"
	"trafficase/pkg/platform/middleware/requestmeta"
	"trafficase/pkg/platform/tx"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("postgres connected", "migrations", "applied")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	cache, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
		log.Info("redis cache connected")
	}

	var sink audit.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := kafkasink.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		sink = kafkaSink
		log.Info("kafka audit sink ready", "topic", cfg.Kafka.Topic)
	} else {
		sink = memorysink.New()
		log.Warn("KAFKA_BROKERS not set, audit events stay in memory")
	}

	auditor := publisher.New(sink, publisher.Config{
		QueueSize:      cfg.Audit.QueueSize,
		BatchSize:      cfg.Audit.BatchSize,
		MaxAttempts:    cfg.Audit.MaxAttempts,
		RetryBackoff:   cfg.Audit.RetryBackoff,
		FlushInterval:  cfg.Audit.FlushInterval,
		DeadLetterSize: cfg.Audit.DeadLetterSize,
	}, publisher.WithLogger(log), publisher.WithMetrics(publisher.NewMetrics()))
	defer func() {
		if err := auditor.Close(); err != nil {
			log.Error("audit publisher close failed", "error", err)
		}
	}()

	var (
		ledgerStore  ledger.Store
		offenseStore offense.Store
		paymentStore payment.Store
		appealStore  appeal.Store
		runner       tx.Runner = tx.NoopRunner{}
	)
	if db != nil {
		ledgerStore = ledger.NewPostgres(db)
		offenseStore = offense.NewPostgres(db)
		paymentStore = payment.NewPostgres(db)
		appealStore = appeal.NewPostgres(db)
		runner = tx.NewSQLRunner(db)
	} else {
		ledgerStore = ledger.NewInMemoryStore()
		offenseStore = offense.NewInMemoryStore()
		paymentStore = payment.NewInMemoryStore()
		appealStore = appeal.NewInMemoryStore()
	}

	ledgerMetrics := idemmetrics.New()
	guard := idempotency.New(ledgerStore, log,
		idempotency.WithRetryFailed(cfg.Idempotency.RetryFailed),
		idempotency.WithMetrics(ledgerMetrics),
	)
	reaper := idempotency.NewReaper(ledgerStore,
		cfg.Idempotency.ProcessingLease, cfg.Idempotency.ReapInterval, log, ledgerMetrics)

	engine := workflow.NewEngine(workflow.Tables())
	coordinator := workflow.NewCoordinator(engine, map[workflow.Kind]workflow.StatusStore{
		workflow.KindOffense: offense.NewWorkflowStore(offenseStore, cache),
		workflow.KindPayment: payment.NewWorkflowStore(paymentStore, cache),
		workflow.KindAppeal:  appeal.NewWorkflowStore(appealStore, cache),
	}, runner, log, workflowmetrics.New(), workflow.WithAuditPublisher(auditor))

	offenseSvc := offense.NewService(offenseStore, guard, log,
		offense.WithTxRunner(runner),
		offense.WithAuditPublisher(auditor),
		offense.WithCache(cache),
		offense.WithMetrics(offensemetrics.New()),
	)
	paymentSvc := payment.NewService(paymentStore, guard, log,
		payment.WithTxRunner(runner),
		payment.WithAuditPublisher(auditor),
		payment.WithCache(cache),
		payment.WithMetrics(paymentmetrics.New()),
		payment.WithOffenseDirectory(offenseStore),
	)
	appealSvc := appeal.NewService(appealStore, guard, log,
		appeal.WithTxRunner(runner),
		appeal.WithAuditPublisher(auditor),
		appeal.WithCache(cache),
		appeal.WithMetrics(appealmetrics.New()),
		appeal.WithOffenseDirectory(offenseStore),
	)

	router := chi.NewRouter()
	router.Use(requestmeta.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api/v1", func(r chi.Router) {
		offensehandler.New(offenseSvc, log).Register(r)
		paymenthandler.New(paymentSvc, log).Register(r)
		appealhandler.New(appealSvc, log).Register(r)
		workflowhandler.New(coordinator, log).Register(r)
		idemhandler.New(guard, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return reaper.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}
