package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/datasen-project/datasen/internal/archive"
	"github.com/datasen-project/datasen/internal/backend"
	"github.com/datasen-project/datasen/internal/config"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/prompt"
	"github.com/datasen-project/datasen/internal/session"
)

func newAssembler(cfg *config.Config) *prompt.Assembler {
	return prompt.NewAssembler(cfg.Context.MaxSize)
}

func newInvoker(cfg config.ModelConfig) backend.Invoker {
	if cfg.Provider == "mock" {
		slog.Warn("using mock model backend, answers are canned")
		return backend.NewMock()
	}
	return backend.NewOpenAI(backend.OpenAIOptions{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Name,
		Timeout:  cfg.Timeout,
	})
}

// newTurnSink fans each recorded turn out to the redis mirror and the
// postgres archive. Sink failures are logged, never surfaced to the asker.
func newTurnSink(ctx context.Context, cfg *config.Config, mirror *memory.RedisStore, repo *archive.Repository) session.TurnSink {
	if mirror == nil && repo == nil {
		return nil
	}
	return func(sessionID string, turn memory.Turn) {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if mirror != nil {
			if err := mirror.Append(sinkCtx, sessionID, turn, cfg.Memory.MaxTurns, cfg.Memory.RedisTTLSec); err != nil {
				slog.Warn("mirroring turn", "error", err, "session_id", sessionID)
			}
		}
		if repo != nil {
			if err := repo.Append(sinkCtx, sessionID, turn); err != nil {
				slog.Warn("archiving turn", "error", err, "session_id", sessionID)
			}
		}
	}
}
