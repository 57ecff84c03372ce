package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"hope/internal/adjudication/factory"
	"hope/internal/adjudication/handler"
	"hope/internal/adjudication/notify"
	adjservice "hope/internal/adjudication/service"
	"hope/internal/audit"
	auditpg "hope/internal/audit/postgres"
	"hope/internal/deduplication/biometric"
	"hope/internal/deduplication/biometric/client"
	"hope/internal/deduplication/hard"
	"hope/internal/jobs"
	"hope/internal/platform/config"
	"hope/internal/platform/httpserver"
	"hope/internal/platform/kafka/consumer"
	"hope/internal/platform/kafka/producer"
	"hope/internal/platform/lock"
	"hope/internal/platform/logger"
	"hope/internal/platform/metrics"
	"hope/internal/platform/postgres"
	"hope/internal/platform/redis"
	"hope/internal/platform/tracing"
	"hope/internal/store"
	"hope/pkg/platform/circuit"
)

// entityStore is everything the worker's services read and write.
type entityStore interface {
	hard.Store
	biometric.Store
	factory.Repository
	adjservice.Store
}

// ticketEvents publishes ticket lifecycle events.
type ticketEvents interface {
	factory.Notifier
	adjservice.Publisher
}

// main wires configuration, the entity store, the deduplication services and
// the job consumer, and serves health, metrics and ticket review until SIGINT
// or SIGTERM.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("dedup worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, os.Stdout)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(reg)
	checks := map[string]httpserver.Check{}

	st, trailStore, closeStore, err := openStore(ctx, cfg.Database, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher, err := openPublisher(ctx, cfg.Kafka, log, checks)
	if err != nil {
		return err
	}
	defer closePublisher()

	tickets := factory.New(st, st,
		factory.WithNotifier(publisher),
		factory.WithLogger(log),
		factory.WithMetrics(m),
	)
	hardDedup := hard.New(st, tickets, hard.WithLogger(log), hard.WithMetrics(m))

	var bio jobs.Biometric
	if cfg.Biometric.BaseURL != "" {
		svc, closeRedis, err := newBiometric(ctx, cfg, st, tickets, log, m, checks)
		if err != nil {
			return err
		}
		defer closeRedis()
		bio = svc
	} else {
		log.Info("biometric deduplication disabled, no engine url configured")
	}

	trail := audit.NewPublisher(trailStore)
	review, err := adjservice.New(st,
		adjservice.WithPublisher(publisher),
		adjservice.WithAuditor(trail),
		adjservice.WithLogger(log),
		adjservice.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("adjudication service: %w", err)
	}

	dispatcher := jobs.NewDispatcher(hardDedup, bio, jobs.WithLogger(log), jobs.WithMetrics(m))

	g, gctx := errgroup.WithContext(ctx)

	srv := httpserver.New(cfg.Server.Addr, httpserver.NewRouter(reg, checks, log, handler.New(review, trail, log).Register))
	g.Go(func() error {
		log.Info("ops server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		jobConsumer, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, []string{cfg.Kafka.JobsTopic},
			dispatcher, consumer.WithLogger(log))
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Info("consuming jobs", "topic", cfg.Kafka.JobsTopic, "group", cfg.Kafka.ConsumerGroup)
			err := jobConsumer.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			jobConsumer.Close()
			return nil
		})
	} else {
		log.Warn("no kafka brokers configured, job intake disabled")
	}

	return g.Wait()
}

// openStore returns the entity store and the review trail store backed by the
// same database.
func openStore(ctx context.Context, cfg config.Database, log *slog.Logger, checks map[string]httpserver.Check) (entityStore, audit.Store, func(), error) {
	if cfg.URL == "" {
		log.Warn("no database url configured, using the in-memory store")
		return store.NewInMemory(), audit.NewInMemoryStore(), func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	pg := store.NewPostgres(db, store.WithTxTimeout(cfg.TxTimeout))
	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	checks["postgres"] = db.PingContext
	return pg, auditpg.New(db), func() { _ = db.Close() }, nil
}

func openPublisher(ctx context.Context, cfg config.Kafka, log *slog.Logger, checks map[string]httpserver.Check) (ticketEvents, func(), error) {
	if len(cfg.Brokers) == 0 {
		return notify.NewMemory(), func() {}, nil
	}
	prod, err := producer.New(cfg.Brokers,
		producer.WithClientID(cfg.ClientID),
		producer.WithLinger(cfg.Linger),
		producer.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	checks["kafka"] = prod.Ping
	return notify.NewKafkaPublisher(prod, cfg.TicketsTopic), func() { prod.Close(ctx) }, nil
}

func newBiometric(
	ctx context.Context,
	cfg *config.Config,
	st entityStore,
	tickets biometric.TicketFactory,
	log *slog.Logger,
	m *metrics.Metrics,
	checks map[string]httpserver.Check,
) (*biometric.Service, func(), error) {
	breaker := circuit.New("deduplication-engine", circuit.WithFailureThreshold(cfg.Biometric.BreakerThreshold))
	engine, err := client.New(client.Config{
		BaseURL:        cfg.Biometric.BaseURL,
		APIKey:         cfg.Biometric.APIKey,
		Timeout:        cfg.Biometric.Timeout,
		MaxRetries:     cfg.Biometric.MaxRetries,
		InitialBackoff: cfg.Biometric.InitialBackoff,
		MaxBackoff:     cfg.Biometric.MaxBackoff,
	}, client.WithBreaker(breaker), client.WithLogger(log), client.WithMetrics(m))
	if err != nil {
		return nil, nil, fmt.Errorf("biometric client: %w", err)
	}

	opts := []biometric.Option{
		biometric.WithThresholds(biometric.Thresholds{
			Duplicate:  cfg.Deduplication.DuplicateThreshold,
			Similarity: cfg.Deduplication.SimilarityThreshold,
		}),
		biometric.WithUploadConcurrency(cfg.Deduplication.UploadConcurrency),
		biometric.WithLogger(log),
		biometric.WithMetrics(m),
	}

	closeRedis := func() {}
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rdb != nil {
		opts = append(opts, biometric.WithLocker(lock.NewRedisLock(rdb.Client, cfg.Redis.LockTTL)))
		checks["redis"] = rdb.Health
		closeRedis = func() { _ = rdb.Close() }
	} else {
		log.Warn("no redis configured, biometric runs are not locked across workers")
	}

	return biometric.New(engine, st, tickets, opts...), closeRedis, nil
}
