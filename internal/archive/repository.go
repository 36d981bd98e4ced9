// Package archive persists completed turns to postgres so conversation
// history outlives the process. The in-memory buffer stays authoritative for
// prompt assembly; the archive is write-through and read for display only.
package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datasen-project/datasen/internal/memory"
)

// ArchivedTurn is a turn row joined with its session.
type ArchivedTurn struct {
	SessionID string      `json:"session_id"`
	Turn      memory.Turn `json:"turn"`
}

// Repository stores turns in the turns table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a turn archive over the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append records one completed turn.
func (r *Repository) Append(ctx context.Context, sessionID string, t memory.Turn) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO turns (session_id, seq, question, answer, asked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, seq) DO NOTHING`,
		sessionID, t.Seq, t.Question, t.Answer, t.AskedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting turn %d for session %s: %w", t.Seq, sessionID, err)
	}
	return nil
}

// ListBySession returns up to limit archived turns for a session in
// chronological order.
func (r *Repository) ListBySession(ctx context.Context, sessionID string, limit int) ([]memory.Turn, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT seq, question, answer, asked_at
		FROM (
			SELECT seq, question, answer, asked_at
			FROM turns
			WHERE session_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turns for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Turn, error) {
		var t memory.Turn
		err := row.Scan(&t.Seq, &t.Question, &t.Answer, &t.AskedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning turns for session %s: %w", sessionID, err)
	}
	return turns, nil
}

// DeleteSession removes all archived turns for a session.
func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM turns WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting turns for session %s: %w", sessionID, err)
	}
	return nil
}
