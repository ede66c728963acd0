// Package storage is the relational side of the pipeline: records and
// cursors, the event history the importance scorer aggregates over,
// importance score rows, triggered watches and predictions. Postgres via
// sqlx; the graph side lives in internal/graph.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// ErrNotFound is returned for lookups of rows that do not exist.
var ErrNotFound = errors.New("storage: not found")

// Store wraps the Postgres connection pool.
type Store struct {
	db     *sqlx.DB
	logger *logging.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db, logger: logging.GetLogger("storage")}, nil
}

// NewStore wraps an existing connection, mainly for tests.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, logger: logging.GetLogger("storage")}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema applies the DDL idempotently.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	s.logger.Debug("schema initialized")
	return nil
}

// InsertRecord stores a record, deduplicating by (source, external id)
// and by content hash. Returns false when the record was already known.
func (s *Store) InsertRecord(ctx context.Context, record *models.Record) (bool, error) {
	if record.ContentHash == "" {
		record.ComputeContentHash()
	}

	// Content-hash dedup catches the same story re-posted under a new
	// external id.
	var duplicate bool
	err := s.db.GetContext(ctx, &duplicate,
		`SELECT EXISTS (SELECT 1 FROM records WHERE content_hash = $1)`, record.ContentHash)
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	if duplicate {
		return false, nil
	}

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO records (id, source_code, external_id, url, title, body, published_at, trust_level, content_hash, ingested_at)
		VALUES (:id, :source_code, :external_id, :url, :title, :body, :published_at, :trust_level, :content_hash, :ingested_at)
		ON CONFLICT (source_code, external_id) DO NOTHING`, record)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetCursor loads the resume point for a source, ErrNotFound when the
// source was never committed.
func (s *Store) GetCursor(ctx context.Context, sourceCode string) (*models.Cursor, error) {
	var cursor models.Cursor
	err := s.db.GetContext(ctx, &cursor,
		`SELECT source_code, last_external_id, last_timestamp, backfill_completed_at
		 FROM cursors WHERE source_code = $1`, sourceCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cursor: %w", err)
	}
	return &cursor, nil
}

// UpsertCursor advances the resume point. Called only after a batch fully
// commits.
func (s *Store) UpsertCursor(ctx context.Context, cursor *models.Cursor) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO cursors (source_code, last_external_id, last_timestamp, backfill_completed_at)
		VALUES (:source_code, :last_external_id, :last_timestamp, :backfill_completed_at)
		ON CONFLICT (source_code) DO UPDATE SET
			last_external_id = EXCLUDED.last_external_id,
			last_timestamp = EXCLUDED.last_timestamp,
			backfill_completed_at = EXCLUDED.backfill_completed_at`, cursor)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}
