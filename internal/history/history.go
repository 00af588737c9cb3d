// Package history keeps a sqlite record of every transfer job.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/lvcoi/ytdl-here/internal/dispatch"
)

// Record is one row of the jobs table.
type Record struct {
	ID            string
	SourceURL     string
	CollectionURL string
	Destination   string
	Selector      string
	Expression    string
	Title         string
	Status        dispatch.Status
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS jobs (
    id              TEXT PRIMARY KEY,
    source_url      TEXT NOT NULL,
    collection_url  TEXT NOT NULL DEFAULT '',
    destination     TEXT NOT NULL DEFAULT '',
    selector        TEXT NOT NULL DEFAULT '',
    expression      TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    error           TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at);
`

const upsertSuffix = `ON CONFLICT(id) DO UPDATE SET
    title = CASE WHEN excluded.title != '' THEN excluded.title ELSE jobs.title END,
    status = excluded.status,
    error = excluded.error,
    updated_at = excluded.updated_at`

var columns = []string{
	"id", "source_url", "collection_url", "destination", "selector",
	"expression", "title", "status", "error", "created_at", "updated_at",
}

var errNotOpen = errors.New("history database not initialized")

// Store wraps the sqlite connection.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history at %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	if _, err := sqlDB.Exec(createTableSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts job. It satisfies dispatch.Recorder.
func (s *Store) Record(ctx context.Context, job dispatch.Job) error {
	if s == nil || s.db == nil {
		return errNotOpen
	}
	errText := ""
	if job.Err != nil {
		errText = job.Err.Error()
	}
	created, updated := job.CreatedAt, job.UpdatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if updated.IsZero() {
		updated = created
	}

	query, args, err := sq.Insert("jobs").
		Columns(columns...).
		Values(
			job.ID, job.SourceURL, job.Collection, job.Destination, job.Selector,
			job.Expression, job.Title, job.Status.String(), errText,
			created.UnixMilli(), updated.UnixMilli(),
		).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("recording job %s: %w", job.ID, err)
	}
	return nil
}

// Filter narrows List. A zero Limit means no limit.
type Filter struct {
	Status string
	Limit  uint64
}

// List returns jobs, most recently updated first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errNotOpen
	}
	b := sq.Select(columns...).From("jobs").OrderBy("updated_at DESC", "id")
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                Record
			status           string
			created, updated int64
		)
		if err := rows.Scan(
			&r.ID, &r.SourceURL, &r.CollectionURL, &r.Destination, &r.Selector,
			&r.Expression, &r.Title, &status, &r.Error, &created, &updated,
		); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		r.Status, _ = dispatch.ParseStatus(status)
		r.CreatedAt = time.UnixMilli(created)
		r.UpdatedAt = time.UnixMilli(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of jobs with status, or all jobs when status is
// empty.
func (s *Store) Count(ctx context.Context, status string) (int, error) {
	if s == nil || s.db == nil {
		return 0, errNotOpen
	}
	b := sq.Select("COUNT(*)").From("jobs")
	if status != "" {
		b = b.Where(sq.Eq{"status": status})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := b.RunWith(s.db).QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}
