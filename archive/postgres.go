package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"smileclip/models"
)

// Summary is the per-task row kept after a task reaches a terminal
// status. Image payloads are never archived; the task store record with
// its TTL remains the only home for those.
type Summary struct {
	TaskID      string
	Filename    string
	Status      models.Status
	Duration    time.Duration
	ResultCount int
	BestScore   float64
}

// Repository writes task summaries to Postgres. It is optional: a nil
// *Repository is a valid no-op receiver for Record.
type Repository struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Repository{pool: pool}, nil
}

func (r *Repository) Record(ctx context.Context, s Summary) error {
	if r == nil {
		return nil
	}

	query := `
		INSERT INTO task_history (task_id, filename, status, duration_ms, result_count, best_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		s.TaskID,
		s.Filename,
		string(s.Status),
		s.Duration.Milliseconds(),
		s.ResultCount,
		s.BestScore,
	)
	if err != nil {
		return fmt.Errorf("archive task %s: %w", s.TaskID, err)
	}
	return nil
}

func (r *Repository) Close() {
	if r != nil {
		r.pool.Close()
	}
}
