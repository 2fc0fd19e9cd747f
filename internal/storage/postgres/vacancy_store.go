// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// querier is the pool surface the stores need; pgxmock satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Config controls the Postgres connection pool.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// VacancyStore persists vacancy records and their change history.
type VacancyStore struct {
	pool querier
}

// NewVacancyStore connects a pool and returns the store.
func NewVacancyStore(ctx context.Context, cfg Config) (*VacancyStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &VacancyStore{pool: pool}, nil
}

// NewVacancyStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewVacancyStoreWithPool(pool querier) *VacancyStore {
	return &VacancyStore{pool: pool}
}

func newPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// Close releases the underlying pool resources.
func (s *VacancyStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

var vacancyColumns = []string{
	"identity", "source", "external_id", "url", "title", "company",
	"skills", "salary_low", "salary_high", "salary_currency", "location",
	"posted_at", "first_seen", "last_seen", "content_hash", "status",
	"miss_streak",
}

// Upsert inserts or replaces the record by identity.
func (s *VacancyStore) Upsert(ctx context.Context, record pipeline.VacancyRecord) error {
	if record.Identity == "" {
		return fmt.Errorf("record identity is required")
	}

	var salaryLow, salaryHigh *float64
	var salaryCurrency *string
	if record.Salary != nil {
		salaryLow = &record.Salary.Low
		salaryHigh = &record.Salary.High
		salaryCurrency = &record.Salary.Currency
	}
	var postedAt *time.Time
	if !record.PostedAt.IsZero() {
		postedAt = &record.PostedAt
	}

	query, args, err := psql.Insert("vacancies").
		Columns(vacancyColumns...).
		Values(
			record.Identity, record.Source, record.ExternalID, record.URL,
			record.Title, record.Company, record.Skills, salaryLow,
			salaryHigh, salaryCurrency, record.Location, postedAt,
			record.FirstSeen, record.LastSeen, record.ContentHash,
			string(record.Status), record.MissStreak,
		).
		Suffix(`ON CONFLICT (identity) DO UPDATE SET
			source = EXCLUDED.source,
			external_id = EXCLUDED.external_id,
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			skills = EXCLUDED.skills,
			salary_low = EXCLUDED.salary_low,
			salary_high = EXCLUDED.salary_high,
			salary_currency = EXCLUDED.salary_currency,
			location = EXCLUDED.location,
			posted_at = EXCLUDED.posted_at,
			last_seen = EXCLUDED.last_seen,
			content_hash = EXCLUDED.content_hash,
			status = EXCLUDED.status,
			miss_streak = EXCLUDED.miss_streak`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert vacancy %s: %w", record.Identity, err)
	}
	return nil
}

// Get fetches a record by identity.
func (s *VacancyStore) Get(ctx context.Context, identity string) (pipeline.VacancyRecord, bool, error) {
	query, args, err := psql.Select(vacancyColumns...).
		From("vacancies").
		Where(sq.Eq{"identity": identity}).
		ToSql()
	if err != nil {
		return pipeline.VacancyRecord{}, false, fmt.Errorf("build select: %w", err)
	}

	record, err := scanVacancy(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return pipeline.VacancyRecord{}, false, nil
		}
		return pipeline.VacancyRecord{}, false, fmt.Errorf("get vacancy %s: %w", identity, err)
	}
	return record, true, nil
}

// ListActive returns all non-removed records, ordered by identity.
func (s *VacancyStore) ListActive(ctx context.Context) ([]pipeline.VacancyRecord, error) {
	return s.list(ctx, psql.Select(vacancyColumns...).
		From("vacancies").
		Where(sq.NotEq{"status": string(pipeline.StatusRemoved)}).
		OrderBy("identity"))
}

// ListAll returns every record including removed ones, ordered by identity.
func (s *VacancyStore) ListAll(ctx context.Context) ([]pipeline.VacancyRecord, error) {
	return s.list(ctx, psql.Select(vacancyColumns...).
		From("vacancies").
		OrderBy("identity"))
}

func (s *VacancyStore) list(ctx context.Context, builder sq.SelectBuilder) ([]pipeline.VacancyRecord, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vacancies: %w", err)
	}
	defer rows.Close()

	var out []pipeline.VacancyRecord
	for rows.Next() {
		record, err := scanVacancy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vacancy: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vacancies: %w", err)
	}
	return out, nil
}

// AppendChange appends one row to the identity's change history.
func (s *VacancyStore) AppendChange(ctx context.Context, entry pipeline.ChangeEntry) error {
	query, args, err := psql.Insert("vacancy_changes").
		Columns("identity", "content_hash", "status", "observed_at").
		Values(entry.Identity, entry.ContentHash, string(entry.Status), entry.ObservedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append change %s: %w", entry.Identity, err)
	}
	return nil
}

// History returns the change history for an identity, oldest first.
func (s *VacancyStore) History(ctx context.Context, identity string) ([]pipeline.ChangeEntry, error) {
	query, args, err := psql.Select("identity", "content_hash", "status", "observed_at").
		From("vacancy_changes").
		Where(sq.Eq{"identity": identity}).
		OrderBy("observed_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", identity, err)
	}
	defer rows.Close()

	var out []pipeline.ChangeEntry
	for rows.Next() {
		var entry pipeline.ChangeEntry
		var status string
		if err := rows.Scan(&entry.Identity, &entry.ContentHash, &status, &entry.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		entry.Status = pipeline.VacancyStatus(status)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return out, nil
}

func scanVacancy(row pgx.Row) (pipeline.VacancyRecord, error) {
	var (
		record         pipeline.VacancyRecord
		status         string
		salaryLow      *float64
		salaryHigh     *float64
		salaryCurrency *string
		postedAt       *time.Time
	)
	err := row.Scan(
		&record.Identity, &record.Source, &record.ExternalID, &record.URL,
		&record.Title, &record.Company, &record.Skills, &salaryLow,
		&salaryHigh, &salaryCurrency, &record.Location, &postedAt,
		&record.FirstSeen, &record.LastSeen, &record.ContentHash,
		&status, &record.MissStreak,
	)
	if err != nil {
		return pipeline.VacancyRecord{}, err
	}
	record.Status = pipeline.VacancyStatus(status)
	if salaryLow != nil && salaryHigh != nil {
		currency := ""
		if salaryCurrency != nil {
			currency = *salaryCurrency
		}
		record.Salary = &pipeline.SalaryRange{
			Low:      *salaryLow,
			High:     *salaryHigh,
			Currency: currency,
		}
	}
	if postedAt != nil {
		record.PostedAt = *postedAt
	}
	return record, nil
}
