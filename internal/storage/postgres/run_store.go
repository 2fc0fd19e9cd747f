package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// RunStore persists crawl runs with their checkpoint as a JSON document.
type RunStore struct {
	pool querier
}

// NewRunStore connects a pool and returns the store.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewRunStoreWithPool(pool querier) *RunStore {
	return &RunStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Save upserts the run snapshot keyed by run ID.
func (s *RunStore) Save(ctx context.Context, run pipeline.CrawlRun) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	checkpoint, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}

	query, args, err := psql.Insert("crawl_runs").
		Columns("id", "state", "started_at", "finished_at", "error_text", "checkpoint").
		Values(run.ID, string(run.State), run.StartedAt, run.FinishedAt, run.ErrorText, checkpoint).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			finished_at = EXCLUDED.finished_at,
			error_text = EXCLUDED.error_text,
			checkpoint = EXCLUDED.checkpoint`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// Get fetches a run by ID.
func (s *RunStore) Get(ctx context.Context, runID string) (pipeline.CrawlRun, bool, error) {
	query, args, err := psql.Select("checkpoint").
		From("crawl_runs").
		Where(sq.Eq{"id": runID}).
		ToSql()
	if err != nil {
		return pipeline.CrawlRun{}, false, fmt.Errorf("build select: %w", err)
	}

	var checkpoint []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&checkpoint); err != nil {
		if err == pgx.ErrNoRows {
			return pipeline.CrawlRun{}, false, nil
		}
		return pipeline.CrawlRun{}, false, fmt.Errorf("get run %s: %w", runID, err)
	}
	return unmarshalRun(checkpoint)
}

// LatestResumable returns the most recent run if it is aborted; completed
// runs are sealed and never resumed.
func (s *RunStore) LatestResumable(ctx context.Context) (pipeline.CrawlRun, bool, error) {
	query, args, err := psql.Select("state", "checkpoint").
		From("crawl_runs").
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return pipeline.CrawlRun{}, false, fmt.Errorf("build select: %w", err)
	}

	var state string
	var checkpoint []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&state, &checkpoint); err != nil {
		if err == pgx.ErrNoRows {
			return pipeline.CrawlRun{}, false, nil
		}
		return pipeline.CrawlRun{}, false, fmt.Errorf("latest run: %w", err)
	}
	if pipeline.RunState(state) != pipeline.RunAborted {
		return pipeline.CrawlRun{}, false, nil
	}
	return unmarshalRun(checkpoint)
}

func unmarshalRun(checkpoint []byte) (pipeline.CrawlRun, bool, error) {
	var run pipeline.CrawlRun
	if err := json.Unmarshal(checkpoint, &run); err != nil {
		return pipeline.CrawlRun{}, false, fmt.Errorf("unmarshal run checkpoint: %w", err)
	}
	return run, true, nil
}
