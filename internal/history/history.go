// Package history persists run summaries and their documents in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/jonesrussell/docscraper/internal/domain"
)

const (
	// DefaultPingTimeout bounds the connection check in Open.
	DefaultPingTimeout = 5 * time.Second
	// DefaultListLimit is used when ListRuns is called with a non-positive limit.
	DefaultListLimit = 20
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL,
	max_downloads INTEGER NOT NULL,
	downloaded    INTEGER NOT NULL,
	accepted      INTEGER NOT NULL,
	pages_fetched INTEGER NOT NULL,
	pages_failed  INTEGER NOT NULL,
	failures      INTEGER NOT NULL,
	bytes         INTEGER NOT NULL,
	cancelled     BOOLEAN NOT NULL DEFAULT 0,
	cap_reached   BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx     INTEGER NOT NULL,
	title   TEXT NOT NULL,
	url     TEXT NOT NULL,
	source  TEXT NOT NULL,
	kind    TEXT NOT NULL,
	status  TEXT NOT NULL,
	path    TEXT NOT NULL DEFAULT '',
	size    INTEGER NOT NULL DEFAULT 0,
	sha256  TEXT NOT NULL DEFAULT '',
	error   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is the stored summary of one run.
type Run struct {
	ID           string    `db:"id"            json:"id"`
	StartedAt    time.Time `db:"started_at"    json:"started_at"`
	FinishedAt   time.Time `db:"finished_at"   json:"finished_at"`
	MaxDownloads int       `db:"max_downloads" json:"max_downloads"`
	Downloaded   int       `db:"downloaded"    json:"downloaded"`
	Accepted     int       `db:"accepted"      json:"accepted"`
	PagesFetched int       `db:"pages_fetched" json:"pages_fetched"`
	PagesFailed  int       `db:"pages_failed"  json:"pages_failed"`
	Failures     int       `db:"failures"      json:"failures"`
	Bytes        int64     `db:"bytes"         json:"bytes"`
	Cancelled    bool      `db:"cancelled"     json:"cancelled"`
	CapReached   bool      `db:"cap_reached"   json:"cap_reached"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type documentRow struct {
	RunID  string `db:"run_id"`
	Index  int    `db:"idx"`
	Title  string `db:"title"`
	URL    string `db:"url"`
	Source string `db:"source"`
	Kind   string `db:"kind"`
	Status string `db:"status"`
	Path   string `db:"path"`
	Size   int64  `db:"size"`
	SHA256 string `db:"sha256"`
	Error  string `db:"error"`
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at path, creating the file if needed.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", pingErr)
	}
	return &Store{db: db}, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a report and its documents in one transaction.
func (s *Store) SaveRun(ctx context.Context, r *domain.Report) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	run := Run{
		ID:           r.RunID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		MaxDownloads: r.MaxDownloads,
		Downloaded:   r.Stats.Downloaded,
		Accepted:     r.Stats.Accepted,
		PagesFetched: r.Stats.PagesFetched,
		PagesFailed:  r.Stats.PagesFailed,
		Failures:     len(r.Failures),
		Bytes:        r.Stats.BytesDownloaded,
		Cancelled:    r.Cancelled,
		CapReached:   r.CapReached,
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (
			id, started_at, finished_at, max_downloads, downloaded, accepted,
			pages_fetched, pages_failed, failures, bytes, cancelled, cap_reached
		)
		VALUES (
			:id, :started_at, :finished_at, :max_downloads, :downloaded, :accepted,
			:pages_fetched, :pages_failed, :failures, :bytes, :cancelled, :cap_reached
		)
	`, run)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, d := range r.Documents {
		row := documentRow{
			RunID:  r.RunID,
			Index:  d.Index,
			Title:  d.Title,
			URL:    d.URL,
			Source: d.SourceName,
			Kind:   d.Kind,
			Status: string(d.Status),
			Path:   d.Path,
			Size:   d.Size,
			SHA256: d.SHA256,
			Error:  d.Error,
		}
		if _, insertErr := tx.NamedExecContext(ctx, `
			INSERT INTO documents (run_id, idx, title, url, source, kind, status, path, size, sha256, error)
			VALUES (:run_id, :idx, :title, :url, :source, :kind, :status, :path, :size, :sha256, :error)
		`, row); insertErr != nil {
			return fmt.Errorf("failed to insert document %d: %w", d.Index, insertErr)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit run: %w", commitErr)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	runs := []Run{}
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, started_at, finished_at, max_downloads, downloaded, accepted,
		       pages_fetched, pages_failed, failures, bytes, cancelled, cap_reached
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run summary.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, `
		SELECT id, started_at, finished_at, max_downloads, downloaded, accepted,
		       pages_fetched, pages_failed, failures, bytes, cancelled, cap_reached
		FROM runs
		WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// Documents returns the documents of a run in acceptance order.
func (s *Store) Documents(ctx context.Context, runID string) ([]domain.Document, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT run_id, idx, title, url, source, kind, status, path, size, sha256, error
		FROM documents
		WHERE run_id = ?
		ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, domain.Document{
			Index:      row.Index,
			Title:      row.Title,
			URL:        row.URL,
			SourceName: row.Source,
			Kind:       row.Kind,
			Status:     domain.DocumentStatus(row.Status),
			Path:       row.Path,
			Size:       row.Size,
			SHA256:     row.SHA256,
			Error:      row.Error,
		})
	}
	return docs, nil
}
