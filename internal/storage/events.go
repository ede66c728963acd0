package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/finradar/finradar/internal/models"
)

// Aggregation windows for the scorer-facing statistics.
const (
	burstWindow       = 24 * time.Hour
	burstRecentWindow = 6 * time.Hour
	corroborationSpan = 6 * time.Hour
	similarityWindow  = 30 * 24 * time.Hour
)

// UpsertEvent stores the relational projection of an event.
func (s *Store) UpsertEvent(ctx context.Context, event *models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, record_id, source_code, event_type, title, ts, tickers, companies, is_anchor, confidence, trust_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET is_anchor = EXCLUDED.is_anchor`,
		event.ID, event.RecordID, event.SourceCode, string(event.Type), event.Title,
		event.Timestamp, pq.Array(event.Attrs.Tickers), pq.Array(event.Attrs.Companies),
		event.IsAnchor, event.Confidence, event.TrustLevel)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

// GetEvent loads one event by id, ErrNotFound when absent.
func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT id, record_id, source_code, event_type, title, ts, tickers, companies, is_anchor, confidence, trust_level
		FROM events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// EventsInWindow returns events in (since, until], oldest first. Used by
// the retroactive reconciler.
func (s *Store) EventsInWindow(ctx context.Context, since, until time.Time, limit int) ([]*models.Event, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, record_id, source_code, event_type, title, ts, tickers, companies, is_anchor, confidence, trust_level
		FROM events WHERE ts > $1 AND ts <= $2 ORDER BY ts ASC LIMIT $3`,
		since, until, limit)
	if err != nil {
		return nil, fmt.Errorf("events in window: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var event models.Event
	var eventType string
	var tickers, companies pq.StringArray
	err := row.Scan(&event.ID, &event.RecordID, &event.SourceCode, &eventType, &event.Title,
		&event.Timestamp, &tickers, &companies, &event.IsAnchor, &event.Confidence, &event.TrustLevel)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	event.Type = models.EventType(eventType)
	event.Attrs.Tickers = tickers
	event.Attrs.Companies = companies
	return &event, nil
}

// SimilarEventCount implements importance.Stats: prior events of the same
// type sharing at least one ticker, within the similarity window.
func (s *Store) SimilarEventCount(ctx context.Context, event *models.Event) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT count(*) FROM events
		WHERE event_type = $1 AND id <> $2
		  AND ts >= $3 AND ts < $4
		  AND ($5::text[] = '{}' OR tickers && $5)`,
		string(event.Type), event.ID,
		event.Timestamp.Add(-similarityWindow), event.Timestamp,
		pq.Array(event.Attrs.Tickers))
	if err != nil {
		return 0, fmt.Errorf("similar event count: %w", err)
	}
	return count, nil
}

// BurstCounts implements importance.Stats: same-type events in the burst
// window before until, and the fresh subset of them.
func (s *Store) BurstCounts(ctx context.Context, eventType models.EventType, until time.Time) (int, int, error) {
	var total, recent int
	err := s.db.GetContext(ctx, &total, `
		SELECT count(*) FROM events
		WHERE event_type = $1 AND ts > $2 AND ts <= $3`,
		string(eventType), until.Add(-burstWindow), until)
	if err != nil {
		return 0, 0, fmt.Errorf("burst total: %w", err)
	}
	err = s.db.GetContext(ctx, &recent, `
		SELECT count(*) FROM events
		WHERE event_type = $1 AND ts > $2 AND ts <= $3`,
		string(eventType), until.Add(-burstRecentWindow), until)
	if err != nil {
		return 0, 0, fmt.Errorf("burst recent: %w", err)
	}
	return total, recent, nil
}

// CorroboratingSources implements importance.Stats: distinct other
// sources reporting the same type around the event.
func (s *Store) CorroboratingSources(ctx context.Context, event *models.Event) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT count(DISTINCT source_code) FROM events
		WHERE event_type = $1 AND source_code <> $2
		  AND ts >= $3 AND ts <= $4`,
		string(event.Type), event.SourceCode,
		event.Timestamp.Add(-corroborationSpan), event.Timestamp.Add(corroborationSpan))
	if err != nil {
		return 0, fmt.Errorf("corroborating sources: %w", err)
	}
	return count, nil
}
