package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/datasen-project/datasen/internal/api"
	"github.com/datasen-project/datasen/internal/archive"
	"github.com/datasen-project/datasen/internal/config"
	"github.com/datasen-project/datasen/internal/database"
	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/middleware"
	iredis "github.com/datasen-project/datasen/internal/redis"
	"github.com/datasen-project/datasen/internal/server"
	"github.com/datasen-project/datasen/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("validating config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL turn archive (optional)
	var (
		archiveRepo *archive.Repository
		pool        *pgxpool.Pool
	)
	if cfg.DB.Enabled() {
		if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
		p, err := database.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			slog.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		pool = p
		archiveRepo = archive.NewRepository(p)
	}

	// Redis conversation mirror + rate limiting (optional)
	var (
		redisClient *redis.Client
		mirror      *memory.RedisStore
		askLimiter  func(http.Handler) http.Handler
	)
	if cfg.Redis.Enabled() {
		rc, err := iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("connecting to redis", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		redisClient = rc
		mirror = memory.NewRedisStore(rc)
		askLimiter = middleware.NewRateLimiter(rc, cfg.RateLimit.MaxReqs, cfg.RateLimit.WindowSec).Middleware
	}

	// Model backend
	invoker := newInvoker(cfg.Model)

	// Sessions
	manager := session.NewManager(session.ManagerOptions{
		Assembler:         newAssembler(cfg),
		Invoker:           invoker,
		MaxTurns:          cfg.Memory.MaxTurns,
		InactivityTimeout: cfg.Session.InactivityTimeout,
		Sink:              newTurnSink(ctx, cfg, mirror, archiveRepo),
	})
	manager.StartJanitor(ctx, cfg.Session.InactivityTimeout/10)

	handler := api.NewSessionHandler(api.SessionHandlerOptions{
		Manager:     manager,
		Mirror:      mirror,
		Archive:     archiveRepo,
		DatasetOpts: dataset.Options{SampleSize: cfg.Dataset.SampleSize},
		MaxTurns:    cfg.Memory.MaxTurns,
	})

	router := api.NewRouter(pool, redisClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AskRateLimiter:     askLimiter,
	}, handler)

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
