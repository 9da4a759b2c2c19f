package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	plhttp "github.com/parleyhq/parley/internal/adapter/http"
	"github.com/parleyhq/parley/internal/adapter/mcp"
	"github.com/parleyhq/parley/internal/adapter/memstore"
	plnats "github.com/parleyhq/parley/internal/adapter/nats"
	"github.com/parleyhq/parley/internal/adapter/natskv"
	plotel "github.com/parleyhq/parley/internal/adapter/otel"
	"github.com/parleyhq/parley/internal/adapter/postgres"
	"github.com/parleyhq/parley/internal/adapter/ristretto"
	"github.com/parleyhq/parley/internal/adapter/tiered"
	"github.com/parleyhq/parley/internal/adapter/ws"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/middleware"
	"github.com/parleyhq/parley/internal/port/audit"
	"github.com/parleyhq/parley/internal/port/cache"
	"github.com/parleyhq/parley/internal/port/sessionstore"
	"github.com/parleyhq/parley/internal/port/toolrunner"
	"github.com/parleyhq/parley/internal/resilience"
	"github.com/parleyhq/parley/internal/service"
)

const version = "0.3.0"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logClose := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logClose.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"log_level", cfg.Logging.Level,
		"capabilities", len(cfg.Capabilities),
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownOtel, err := plotel.Init(ctx, cfg.Logging.Service, cfg.OTLP.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(shutdownCtx)
	}()

	metrics, err := plotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Storage ---
	var (
		store  sessionstore.Store
		events plhttp.EventLister
		sinks  audit.Multi
	)

	sinks = append(sinks, audit.Logger{})

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres ready")

		store = postgres.NewStore(pool)
		auditStore := postgres.NewAuditStore(pool)
		events = auditStore
		sinks = append(sinks, auditStore)
	case "memory":
		store = memstore.New()
		slog.Info("using in-memory session store")
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	// --- Tool-result cache ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	var toolCache cache.Cache = l1

	// --- NATS (optional) ---
	if cfg.NATS.URL != "" {
		queue, err := plnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
		sinks = append(sinks, plnats.NewSink(queue))

		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		toolCache = tiered.New(l1, natskv.New(kv), cfg.Cache.L1Expire)
		slog.Info("nats connected", "l2_bucket", cfg.Cache.L2Bucket)
	}

	// --- Capabilities ---
	registry := toolrunner.NewRegistry()
	for _, c := range cfg.Capabilities {
		capFn, err := toolrunner.NewCapability(c.Adapter, c.Config)
		if err != nil {
			return fmt.Errorf("capability %s: %w", c.Name, err)
		}
		registry.Register(c.Name, capFn)
	}
	slog.Info("capabilities registered", "names", registry.Names())

	// --- Services ---
	extractor, err := service.NewExtractor(cfg.Intents, cfg.Slots)
	if err != nil {
		return fmt.Errorf("extractor: %w", err)
	}

	thresholds, err := service.NewThresholdService(&cfg.Orchestrator)
	if err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	breakers := resilience.NewSet(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	invoker := service.NewToolInvoker(registry, breakers, toolCache, &cfg.Tools)

	hub := ws.NewHub()
	sinks = append(sinks, ws.NewSink(hub))

	orch, err := service.NewOrchestrator(
		store,
		service.NewHandlerSet(extractor),
		thresholds,
		invoker,
		sinks,
		metrics,
		&cfg.Orchestrator,
	)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	// --- MCP (optional) ---
	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(mcp.ServerConfig{
			Name:    cfg.MCP.Name,
			Version: cfg.MCP.Version,
			Addr:    cfg.MCP.Addr,
			APIKey:  cfg.MCP.APIKey,
		}, mcp.ServerDeps{
			Sessions:   orch,
			Turns:      orch,
			Thresholds: thresholds,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpSrv.Stop(stopCtx)
		}()
		slog.Info("mcp server started", "addr", cfg.MCP.Addr)
	}

	// --- HTTP ---
	handlers := plhttp.NewHandlers(orch, thresholds, events, version)

	r := chi.NewRouter()
	r.Use(plhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(plhttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(plotel.HTTPMiddleware(cfg.Logging.Service))

	plhttp.MountRoutes(r, handlers, cfg.Auth.OperatorKeyHash, hub.HandleWS)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
