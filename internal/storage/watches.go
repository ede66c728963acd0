package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/finradar/finradar/internal/models"
)

// InsertTriggeredWatch stores one watcher hit.
func (s *Store) InsertTriggeredWatch(ctx context.Context, watch *models.TriggeredWatch) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO triggered_watches (id, rule_id, level, event_id, triggered_at, auto_expire_at, expired, notifications_sent, context)
		VALUES (:id, :rule_id, :level, :event_id, :triggered_at, :auto_expire_at, :expired, :notifications_sent, :context)
		ON CONFLICT (id) DO NOTHING`, watch)
	if err != nil {
		return fmt.Errorf("insert triggered watch: %w", err)
	}
	return nil
}

// MarkNotified flips the notifications-sent flag.
func (s *Store) MarkNotified(ctx context.Context, watchID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE triggered_watches SET notifications_sent = true WHERE id = $1`, watchID)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// ExpireWatches marks all watches past their auto-expiry as expired and
// returns how many were released.
func (s *Store) ExpireWatches(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE triggered_watches SET expired = true WHERE NOT expired AND auto_expire_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire watches: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// InsertPrediction stores one L2 forecast.
func (s *Store) InsertPrediction(ctx context.Context, p *models.EventPrediction) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO predictions (id, watch_id, base_event_id, predicted_type, probability, window_days, target_date, status, actual_event_id, created_at, resolved_at)
		VALUES (:id, :watch_id, :base_event_id, :predicted_type, :probability, :window_days, :target_date, :status, :actual_event_id, :created_at, :resolved_at)
		ON CONFLICT (id) DO NOTHING`, p)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// OpenPredictions returns pending predictions of the given type whose
// window has not closed at ts.
func (s *Store) OpenPredictions(ctx context.Context, predictedType models.EventType, ts time.Time) ([]*models.EventPrediction, error) {
	var out []*models.EventPrediction
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, watch_id, base_event_id, predicted_type, probability, window_days, target_date, status, actual_event_id, created_at, resolved_at
		FROM predictions
		WHERE status = $1 AND predicted_type = $2 AND target_date >= $3`,
		string(models.PredictionPending), string(predictedType), ts)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	return out, nil
}

// ResolvePrediction flips a prediction to its terminal status.
func (s *Store) ResolvePrediction(ctx context.Context, predictionID string, status models.PredictionStatus, actualEventID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE predictions SET status = $2, actual_event_id = $3, resolved_at = $4
		WHERE id = $1 AND status = $5`,
		predictionID, string(status), actualEventID, at, string(models.PredictionPending))
	if err != nil {
		return fmt.Errorf("resolve prediction: %w", err)
	}
	return nil
}

// ExpirePredictions marks pending predictions whose window closed before
// now as unfulfilled.
func (s *Store) ExpirePredictions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE predictions SET status = $1, resolved_at = $2
		WHERE status = $3 AND target_date < $2`,
		string(models.PredictionUnfulfilled), now, string(models.PredictionPending))
	if err != nil {
		return 0, fmt.Errorf("expire predictions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PredictionAccuracy is the resolved-prediction aggregate for one type.
type PredictionAccuracy struct {
	PredictedType string  `db:"predicted_type"`
	Total         int     `db:"total"`
	Fulfilled     int     `db:"fulfilled"`
	HitRate       float64 `db:"hit_rate"`
}

// AccuracyByType aggregates resolved predictions per predicted type.
func (s *Store) AccuracyByType(ctx context.Context) ([]PredictionAccuracy, error) {
	var out []PredictionAccuracy
	err := s.db.SelectContext(ctx, &out, `
		SELECT predicted_type,
		       count(*) AS total,
		       count(*) FILTER (WHERE status = $1) AS fulfilled,
		       count(*) FILTER (WHERE status = $1)::float / count(*) AS hit_rate
		FROM predictions
		WHERE status <> $2
		GROUP BY predicted_type
		ORDER BY predicted_type`,
		string(models.PredictionFulfilled), string(models.PredictionPending))
	if err != nil {
		return nil, fmt.Errorf("accuracy by type: %w", err)
	}
	return out, nil
}
