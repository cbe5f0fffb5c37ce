// Package main is the entry point for the welding equipment configurator
// service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weldcfg/configurator/internal/applicability"
	"github.com/weldcfg/configurator/internal/compatibility"
	"github.com/weldcfg/configurator/internal/composer"
	appconfig "github.com/weldcfg/configurator/internal/config"
	"github.com/weldcfg/configurator/internal/core"
	pgconfig "github.com/weldcfg/configurator/internal/database/postgres"
	"github.com/weldcfg/configurator/internal/httpapi"
	"github.com/weldcfg/configurator/internal/infrastructure/cache"
	"github.com/weldcfg/configurator/internal/infrastructure/lock"
	"github.com/weldcfg/configurator/internal/infrastructure/llm"
	"github.com/weldcfg/configurator/internal/orchestrator"
	"github.com/weldcfg/configurator/internal/realtime"
	"github.com/weldcfg/configurator/internal/repository"
	"github.com/weldcfg/configurator/internal/session"
	"github.com/weldcfg/configurator/internal/state"
	"github.com/weldcfg/configurator/internal/telemetry"
	pkglogger "github.com/weldcfg/configurator/pkg/logger"
	"github.com/weldcfg/configurator/pkg/metrics"
)

const serviceName = "configurator"

var serviceVersion = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to a configuration file")
		showVersion = flag.Bool("version", false, "show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := pkglogger.NewLogger(pkglogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	slog.SetDefault(logger)

	logger.Info("starting configurator", "service", serviceName, "version", serviceVersion, "profile", cfg.Profile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, opsBus, gcWorker, cleanup, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize configurator", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	gcWorker.Start(ctx)
	defer gcWorker.Stop()

	if opsBus != nil {
		if err := opsBus.Start(ctx); err != nil {
			logger.Error("failed to start ops-feed event bus", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			_ = opsBus.Stop(stopCtx)
		}()
	}

	router := httpapi.NewRouter(httpapi.DefaultRouterConfig(), o, opsBus, logger, serviceVersion)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownTimeout := cfg.Server.GracefulShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

// buildOrchestrator wires every Orchestrator dependency per cfg.Profile
// (spec SUPPLEMENTED FEATURES "Deployment profile duality"). The
// returned cleanup closes whatever connections were opened.
func buildOrchestrator(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) (*orchestrator.Orchestrator, realtime.EventBus, *session.GCWorker, func(), error) {
	var (
		archiveDB   pgconfig.DatabaseConnection
		graphDB     pgconfig.DatabaseConnection
		closers     []func()
		cacheClient cache.Cache
		locks       *lock.LockManager
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// The session archive follows the deployment profile (spec
	// SUPPLEMENTED FEATURES "Deployment profile duality"): Standard
	// connects Postgres, Lite stays on embedded SQLite. The Product
	// Repository's graph connection is independent of that choice (spec
	// §4.3): it either shares the archive pool (Graph.UseArchiveDB) or
	// dials its own endpoint, in either profile.
	if cfg.IsStandardProfile() {
		pool := pgconfig.NewPostgresPool(&pgconfig.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.Username,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: int32(cfg.Database.MaxConnections),
			MinConns: int32(cfg.Database.MinConnections),
		}, logger)
		if err := pool.Connect(ctx); err != nil {
			return nil, nil, nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, func() { _ = pool.Disconnect(context.Background()) })
		archiveDB = pool

		archiveExporter := pgconfig.NewPrometheusExporter(pool, metrics.DefaultRegistry().Infra().DB)
		archiveExporter.Start(ctx, cfg.Database.MetricsExportInterval)
		closers = append(closers, archiveExporter.Stop)

		redisCache, err := cache.NewRedisCache(&cache.CacheConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			MaxRetries:   cfg.Redis.MaxRetries,
		}, logger)
		if err != nil {
			return nil, nil, nil, cleanup, fmt.Errorf("connect redis cache: %w", err)
		}
		cacheClient = redisCache

		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		closers = append(closers, func() { _ = redisClient.Close() })
		locks = lock.NewLockManager(redisClient, &lock.LockConfig{
			TTL:            cfg.Lock.TTL,
			MaxRetries:     cfg.Lock.MaxRetries,
			RetryInterval:  cfg.Lock.RetryInterval,
			AcquireTimeout: cfg.Lock.AcquireTimeout,
			ReleaseTimeout: cfg.Lock.ReleaseTimeout,
			ValuePrefix:    cfg.Lock.ValuePrefix,
		}, logger)
	} else {
		cacheClient = cache.NewMemoryCache(cfg.Cache.CleanupInterval)
	}

	if cfg.Graph.UseArchiveDB {
		graphDB = archiveDB
	} else if cfg.Graph.URI != "" {
		// cfg.Database supplies the pool/SSL knobs; Graph.URI overrides
		// only the endpoint (spec §4.3: "dials its own endpoint via
		// URI/Credentials" when not sharing the archive database).
		graphCfg := &pgconfig.PostgresConfig{
			Host:     cfg.Graph.URI,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.Username,
			Password: cfg.Graph.Credentials,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: int32(cfg.Database.MaxConnections),
			MinConns: int32(cfg.Database.MinConnections),
		}
		pool := pgconfig.NewPostgresPool(graphCfg, logger)
		if err := pool.Connect(ctx); err != nil {
			return nil, nil, nil, cleanup, fmt.Errorf("connect graph database: %w", err)
		}
		closers = append(closers, func() { _ = pool.Disconnect(context.Background()) })
		graphDB = pool
		// No separate PrometheusExporter here: DatabaseMetrics' connection
		// gauges carry no per-pool label, so exporting a second,
		// independently-dialed pool onto the same series would just have
		// the two pools clobber each other's numbers.
	}

	store, err := session.NewStore(ctx, cfg, cacheClient, archiveDB, logger)
	if err != nil {
		return nil, nil, nil, cleanup, fmt.Errorf("build session store: %w", err)
	}

	appTable := buildApplicabilityTable(ctx, logger)

	var breaker *llm.CircuitBreaker
	if cfg.LLM.CircuitBreakerEnabled {
		breaker, err = llm.NewCircuitBreaker(llm.CircuitBreakerConfig{
			MaxFailures:      cfg.LLM.CircuitBreakerFailureThreshold,
			ResetTimeout:     cfg.LLM.CircuitBreakerResetTimeout,
			FailureThreshold: 0.5,
			TimeWindow:       60 * time.Second,
			SlowCallDuration: 3 * time.Second,
			HalfOpenMaxCalls: 1,
			Enabled:          true,
		}, logger, llm.NewCircuitBreakerMetrics())
		if err != nil {
			return nil, nil, nil, cleanup, fmt.Errorf("build llm circuit breaker: %w", err)
		}
	}
	extractor := llm.NewClient(llm.Config{
		BaseURL:      cfg.LLM.BaseURL,
		APIKey:       cfg.LLM.APIKey,
		Model:        cfg.LLM.Model,
		Timeout:      cfg.LLM.Timeout,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryDelay:   cfg.LLM.RetryDelay,
		RetryBackoff: cfg.LLM.RetryBackoff,
	}, logger, breaker)

	var repo core.Repository
	if graphDB != nil {
		repo = repository.NewPostgresRepository(graphDB, repository.Options{
			CacheSize: cfg.Graph.CacheSize,
			CacheTTL:  cfg.Graph.CacheTTL,
		}, logger)
	} else {
		logger.Warn("no graph database configured, product lookups will fail until one is wired")
	}

	msgComposer, err := composer.New(cfg.Composer.LocalesDir, cfg.Composer.DefaultLanguage, logger)
	if err != nil {
		return nil, nil, nil, cleanup, fmt.Errorf("build message composer: %w", err)
	}

	realtimeMetrics := realtime.NewRealtimeMetrics("configurator")
	opsBus := realtime.NewEventBus(logger, realtimeMetrics)
	publisher := realtime.NewEventPublisher(opsBus, logger, realtimeMetrics)
	telemetryEmitter := telemetry.NewSlogEmitter(logger)

	o := orchestrator.New(orchestrator.Deps{
		Extractor:     extractor,
		Repository:    repo,
		Compatibility: compatibility.NewEngine(),
		Applicability: appTable,
		Machine:       state.NewMachine(state.Options{MinimumRealComponents: cfg.App.MinimumRealComponents}),
		Store:         store,
		Composer:      msgComposer,
		Telemetry:     telemetryEmitter,
		Locks:         locks,
		Publisher:     publisher,
		Metrics:       metrics.DefaultRegistry().Business(),
		Technical:     metrics.DefaultRegistry().Technical(),
		Logger:        logger,
	}, orchestrator.Options{
		TurnDeadline:                 cfg.TurnDeadline(),
		LLMDeadline:                  cfg.LLMDeadline(),
		GraphDeadline:                cfg.GraphDeadline(),
		RateLimitPerSessionPerMinute: cfg.Turn.RateLimitPerSessionPerMinute,
		MinimumRealComponents:        cfg.App.MinimumRealComponents,
		AutoCommitConfidence:         cfg.Extractor.AutoCommitConfidence,
		ClarifyBelowConfidence:       cfg.Extractor.ClarifyBelowConfidence,
		DirectMentionEnriches:        cfg.Extractor.DirectMentionEnriches,
	})

	gcWorker := session.NewGCWorker(store, telemetryEmitter, cfg.Cache.CleanupInterval, logger)

	return o, opsBus, gcWorker, cleanup, nil
}

// buildApplicabilityTable best-effort loads the Applicability Table from
// its ConfigMap (spec §4.1: "Implementation freedom: any reload
// discipline"). A failure to reach Kubernetes (e.g. running outside a
// cluster in the Lite profile) degrades to an empty table rather than
// failing startup — every power source simply reads as fully applicable
// until an operator seeds real entries.
func buildApplicabilityTable(ctx context.Context, logger *slog.Logger) *applicability.Table {
	loader, err := applicability.NewLoader(applicability.DefaultLoaderConfig(), logger)
	if err != nil {
		logger.Warn("applicability table loader unavailable, starting empty", "error", err)
		return applicability.NewTable(nil)
	}

	entries, err := loader.LoadOnce(ctx)
	if err != nil {
		logger.Warn("initial applicability table load failed, starting empty", "error", err)
		return applicability.NewTable(nil)
	}

	table := applicability.NewTable(entries)
	if err := loader.Watch(ctx, table.Reload); err != nil {
		logger.Warn("applicability table watch failed, table will not auto-refresh", "error", err)
	}
	return table
}
