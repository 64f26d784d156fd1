// Binary server runs the deal scoring API.
//
// All wiring happens here: configuration, backing services, stores, domain
// services, the audit pipeline, rate limiting, and the HTTP router. Every
// backing service is optional; with nothing configured the process runs
// entirely on in-memory stores, which is the development default.
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

	"golang.org/x/sync/errgroup"

	"siva/internal/audit"
	auditmemory "siva/internal/audit/store/memory"
	auditpostgres "siva/internal/audit/store/postgres"
	"siva/internal/evaluation"
	evaluationmetrics "siva/internal/evaluation/metrics"
	jwttoken "siva/internal/jwt_token"
	"siva/internal/platform/config"
	"siva/internal/platform/httpserver"
	"siva/internal/platform/kafka/producer"
	"siva/internal/platform/logger"
	platformmetrics "siva/internal/platform/metrics"
	"siva/internal/platform/postgres"
	platformredis "siva/internal/platform/redis"
	"siva/internal/policy"
	policymetrics "siva/internal/policy/metrics"
	policymemory "siva/internal/policy/store/memory"
	policypostgres "siva/internal/policy/store/postgres"
	ratelimitconfig "siva/internal/ratelimit/config"
	"siva/internal/ratelimit/limiter"
	ratelimitmetrics "siva/internal/ratelimit/metrics"
	ratelimitmw "siva/internal/ratelimit/middleware"
	"siva/internal/ratelimit/store/counter"
	tenantmetrics "siva/internal/tenant/metrics"
	tenantservice "siva/internal/tenant/service"
	apikeystore "siva/internal/tenant/store/apikey"
	tenantstore "siva/internal/tenant/store/tenant"
	httptransport "siva/internal/transport/http"
	"siva/pkg/platform/middleware/auth"
)

// auditTopicPartitions and auditTopicReplicas apply only when the topic does
// not exist yet; existing topics keep their layout.
const (
	auditTopicPartitions = 3
	auditTopicReplicas   = 1
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if db != nil {
		defer db.Close()
		log.Info("postgres connected")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	}

	kafkaProducer, err := producer.New(cfg.Kafka.Brokers, log)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		if err := kafkaProducer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, auditTopicPartitions, auditTopicReplicas); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		log.Info("kafka connected", "audit_topic", cfg.Kafka.AuditTopic)
	}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		policyStore policy.Store              = policymemory.NewInMemory()
		tenants     tenantservice.TenantStore = tenantstore.NewInMemory()
		keys        tenantservice.KeyStore    = apikeystore.NewInMemory()
		auditStore  audit.Store               = auditmemory.NewInMemoryStore()
	)
	if db != nil {
		policyStore = policypostgres.New(db)
		tenants = tenantstore.NewPostgres(db)
		keys = apikeystore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
	}

	// Audit pipeline: synchronous store append, async fan-out to sinks.
	var worker *audit.Worker
	publisherOpts := []audit.Option{audit.WithLogger(log)}
	if kafkaProducer != nil {
		worker = audit.NewWorker(cfg.Audit.QueueSize, log, audit.NewKafkaSink(kafkaProducer, cfg.Kafka.AuditTopic))
		publisherOpts = append(publisherOpts, audit.WithWorker(worker))
	}
	publisher := audit.NewPublisher(auditStore, publisherOpts...)
	auditSvc := audit.NewService(auditStore)

	policySvc := policy.New(policyStore,
		policy.WithLogger(log),
		policy.WithAuditPublisher(publisher),
		policy.WithMetrics(policymetrics.New()),
	)
	evalSvc := evaluation.New(policySvc,
		evaluation.WithLogger(log),
		evaluation.WithAuditPublisher(publisher),
		evaluation.WithMetrics(evaluationmetrics.New()),
	)
	tenantSvc := tenantservice.New(tenants, keys,
		tenantservice.WithLogger(log),
		tenantservice.WithAuditPublisher(publisher),
		tenantservice.WithMetrics(tenantmetrics.New()),
	)

	if cfg.Policy.SeedPath != "" {
		file, err := policy.LoadSeedFile(cfg.Policy.SeedPath)
		if err != nil {
			return fmt.Errorf("policy seed: %w", err)
		}
		activated, err := policySvc.Seed(ctx, file)
		if err != nil {
			return fmt.Errorf("policy seed: %w", err)
		}
		log.Info("policy seed applied", "path", cfg.Policy.SeedPath, "activated", activated)
	}

	var counters limiter.CounterStore = counter.NewInMemory()
	if redisClient != nil {
		counters = counter.NewRedis(redisClient.Client)
	}
	lim, err := limiter.New(counters,
		limiter.WithLogger(log),
		limiter.WithConfig(ratelimitconfig.FromPlatform(cfg.RateLimit)),
		limiter.WithAuditPublisher(publisher),
		limiter.WithMetrics(ratelimitmetrics.New()),
	)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	rateLimit := ratelimitmw.New(lim, log, ratelimitmw.WithDisabled(!cfg.RateLimit.Enabled))

	var adminAuth auth.JWTValidator
	if cfg.Auth.AdminJWTSecret != "" {
		adminAuth = jwttoken.NewJWTService(cfg.Auth.AdminJWTSecret, cfg.Auth.AdminJWTIssuer)
	} else {
		log.Warn("admin API disabled: SIVA_ADMIN_JWT_SECRET is not set")
	}

	var readiness []httptransport.ReadyCheck
	if db != nil {
		readiness = append(readiness, httptransport.ReadyCheck{Name: "postgres", Check: db.PingContext})
	}
	if redisClient != nil {
		readiness = append(readiness, httptransport.ReadyCheck{Name: "redis", Check: redisClient.Health})
	}
	if kafkaProducer != nil {
		readiness = append(readiness, httptransport.ReadyCheck{Name: "kafka", Check: kafkaProducer.Health})
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:     log,
		Metrics:    platformmetrics.New(),
		Evaluation: evalSvc,
		Policies:   policySvc,
		Tenants:    tenantSvc,
		Audit:      auditSvc,
		AdminAuth:  adminAuth,
		RateLimit:  rateLimit,
		Readiness:  readiness,
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	if worker != nil {
		g.Go(func() error {
			if err := worker.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if worker != nil {
		if dropped := worker.Dropped(); dropped > 0 {
			log.Warn("audit events dropped during run", "count", dropped)
		}
	}
	return err
}
