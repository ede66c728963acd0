package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finradar/finradar/internal/models"
)

// InsertImportance appends one scoring row. History is append-only; reads
// take the most recent row.
func (s *Store) InsertImportance(ctx context.Context, score *models.ImportanceScore) error {
	if err := score.Validate(); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO importance_scores (event_id, novelty, burst, credibility, breadth, price_impact, total, calculated_at)
		VALUES (:event_id, :novelty, :burst, :credibility, :breadth, :price_impact, :total, :calculated_at)`, score)
	if err != nil {
		return fmt.Errorf("insert importance: %w", err)
	}
	return nil
}

// LatestImportance returns the most recent scoring row for an event.
func (s *Store) LatestImportance(ctx context.Context, eventID string) (*models.ImportanceScore, error) {
	var score models.ImportanceScore
	err := s.db.GetContext(ctx, &score, `
		SELECT event_id, novelty, burst, credibility, breadth, price_impact, total, calculated_at
		FROM importance_scores WHERE event_id = $1
		ORDER BY calculated_at DESC LIMIT 1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest importance: %w", err)
	}
	return &score, nil
}

// Importance implements the chain finder's importance reader: latest
// total, 0 when the event was never scored.
func (s *Store) Importance(ctx context.Context, eventID string) (float64, error) {
	score, err := s.LatestImportance(ctx, eventID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return score.Total, nil
}
