package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/triage-ai/palisade/services/tool_router/internal/api"
	"github.com/triage-ai/palisade/services/tool_router/internal/auth"
	"github.com/triage-ai/palisade/services/tool_router/internal/config"
	"github.com/triage-ai/palisade/services/tool_router/internal/engine"
	"github.com/triage-ai/palisade/services/tool_router/internal/history"
	"github.com/triage-ai/palisade/services/tool_router/internal/performance"
	"github.com/triage-ai/palisade/services/tool_router/internal/registry"
	"github.com/triage-ai/palisade/services/tool_router/internal/storage"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
	"github.com/triage-ai/palisade/services/tool_router/internal/tools/builtin"
	"github.com/triage-ai/palisade/services/tool_router/internal/tools/remote"
	"github.com/triage-ai/palisade/services/tool_router/internal/tracing"
	"github.com/triage-ai/palisade/services/tool_router/internal/validation"
)

const (
	serviceName    = "tool-router"
	serviceVersion = "0.1.0"

	schemaCacheTTL = 5 * time.Minute
	initTimeout    = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logger
	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting tool router server",
		zap.String("port", cfg.Port),
		zap.Int("max_history_size", cfg.MaxHistorySize),
		zap.Int("max_parallelism", cfg.MaxParallelism),
		zap.Int("remote_tools", len(cfg.RemoteTools)),
	)

	// Tracing
	tracer, shutdownTracing, err := tracing.Init(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Enabled:        cfg.EnableTracing,
	})
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Postgres: shared by auth, the remote tool catalog and snapshots
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		logger.Info("postgres connected")
	} else {
		logger.Info("no POSTGRES_DSN set, using static auth and no snapshot archive")
	}

	// Performance tracking and routing
	monitor := performance.NewProcessMonitor(logger)
	tracker := performance.NewTracker(cfg.Scoring, monitor, prometheus.DefaultRegisterer, logger)
	tracker.StartSampling(cfg.LoadSampleEvery)
	defer tracker.Close()
	reg := registry.New(tracker, logger)
	router, err := engine.NewRouter(engine.Options{
		Registry:       reg,
		Tracker:        tracker,
		Usage:          history.NewUsageLog(cfg.MaxHistorySize),
		Learning:       history.NewLearningStore(),
		Monitor:        monitor,
		Tracer:         tracer,
		Logger:         logger,
		MaxParallelism: cfg.MaxParallelism,
	})
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	// Event sink: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if cfg.ClickHouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()
	router.Subscribe(storage.Observer(writer))

	// Tools
	validator := validation.NewSchemaValidator(schemaCacheTTL)
	var searcher builtin.Searcher
	if cfg.SearchEndpoint != "" {
		searcher = builtin.HTTPSearcher{
			Endpoint: cfg.SearchEndpoint,
			Client:   &http.Client{Timeout: cfg.RemoteTimeout},
		}
	}
	tools := builtin.Tools(builtin.Options{Validator: validator, Searcher: searcher, Logger: logger})

	pool := remote.NewPool(logger)
	defer func() { _ = pool.Close() }()
	decls := cfg.RemoteTools
	if db != nil {
		catalog, err := registry.NewPostgresCatalog(db, logger).Load(context.Background())
		if err != nil {
			logger.Warn("failed to load remote tool catalog", zap.Error(err))
		}
		decls = append(decls, catalog...)
	}
	tools = append(tools, pool.Tools(decls, validator, cfg.RemoteTimeout)...)

	registerTools(router, tools, logger)
	initCtx, cancelInit := context.WithTimeout(context.Background(), initTimeout)
	if err := reg.WaitInitialized(initCtx); err != nil {
		logger.Warn("tool initialization still pending", zap.Error(err))
	}
	cancelInit()

	// Auth and snapshots
	var authenticator auth.Authenticator
	var archive *storage.SnapshotArchive
	if db != nil {
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: cfg.AuthCacheTTL,
			FailOpen: cfg.AuthFailOpen,
			Logger:   logger,
		})
		archive = storage.NewPostgresSnapshotArchive(db, logger)
	} else {
		authenticator = auth.NewStaticAuthenticator()
		logger.Info("using static authenticator (no POSTGRES_DSN)")
	}

	// HTTP server
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(&api.Dependencies{
			Router:   router,
			Auth:     authenticator,
			Archive:  archive,
			Gatherer: prometheus.DefaultGatherer,
			Metrics:  prometheus.DefaultRegisterer,
			Logger:   logger,
			Timeout:  cfg.ExecuteTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("http shutdown incomplete", zap.Error(err))
		}
		if archive != nil && cfg.SnapshotOnExit {
			if _, err := archive.Save(ctx, router.Export()); err != nil {
				logger.Warn("failed to save exit snapshot", zap.Error(err))
			}
		}
	}()

	logger.Info("tool router server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", zap.Error(err))
	}
	<-idle
}

func registerTools(router *engine.Router, tools []*tool.Tool, logger *zap.Logger) {
	for _, t := range tools {
		if err := router.Register(t); err != nil {
			logger.Warn("skipping tool", zap.String("tool_id", t.ID), zap.Error(err))
		}
	}
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
