// Package history keeps a durable ledger of finished import runs in
// PostgreSQL and purges old entries on a schedule.
package history

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/schedule-import/internal/core"
)

const (
	table = "import_runs"

	// DefaultListLimit applies when a Filter has no limit.
	DefaultListLimit = 50
	// MaxListLimit caps Filter.Limit.
	MaxListLimit = 500
)

var columns = []string{
	"id", "kind", "file_name", "total", "success", "errors",
	"incomplete", "failed", "error", "started_at", "finished_at",
}

// DBTX is the subset of pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Run is one ledger entry.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Kind       core.Kind `json:"kind"`
	FileName   string    `json:"fileName"`
	Total      int       `json:"total"`
	Success    int       `json:"success"`
	Errors     int       `json:"errors"`
	Incomplete bool      `json:"incomplete"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Filter narrows List. A zero Kind lists every kind.
type Filter struct {
	Kind   core.Kind
	Limit  int
	Offset int
}

// Store reads and writes the import ledger.
type Store struct {
	db DBTX
	sb sq.StatementBuilderType
}

// NewStore creates a Store over db.
func NewStore(db DBTX) *Store {
	return &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// RecordRun stores a finished run. Recording the same import twice keeps
// the first entry.
func (s *Store) RecordRun(ctx context.Context, run core.RunSummary) error {
	id, err := uuid.Parse(run.ImportID)
	if err != nil {
		return fmt.Errorf("history: invalid import id %q: %w", run.ImportID, err)
	}

	query, args, err := s.sb.Insert(table).
		Columns(columns...).
		Values(id, string(run.Kind), run.FileName, run.Total, run.Success, run.Errors,
			run.Incomplete, run.Failed, run.Error, run.StartedAt, run.FinishedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("history: build insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	qb := s.sb.Select(columns...).
		From(table).
		OrderBy("started_at DESC").
		Limit(uint64(limit))
	if f.Kind != "" {
		qb = qb.Where(sq.Eq{"kind": string(f.Kind)})
	}
	if f.Offset > 0 {
		qb = qb.Offset(uint64(f.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("history: build select: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r    Run
			kind string
		)
		if err := rows.Scan(&r.ID, &kind, &r.FileName, &r.Total, &r.Success, &r.Errors,
			&r.Incomplete, &r.Failed, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.Kind = core.Kind(kind)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return runs, nil
}

// Purge deletes runs that finished before cutoff and returns how many.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sb.Delete(table).
		Where(sq.Lt{"finished_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("history: build delete: %w", err)
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("history: purge runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
