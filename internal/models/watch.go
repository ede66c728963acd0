package models

import "time"

// TriggeredWatch is a materialised hit of a watcher rule on an event.
type TriggeredWatch struct {
	ID                string     `db:"id"`
	RuleID            string     `db:"rule_id"`
	Level             WatchLevel `db:"level"`
	EventID           string     `db:"event_id"`
	TriggeredAt       time.Time  `db:"triggered_at"`
	AutoExpireAt      time.Time  `db:"auto_expire_at"`
	Expired           bool       `db:"expired"`
	NotificationsSent bool       `db:"notifications_sent"`
	Context           string     `db:"context"` // JSON snapshot
}

// EventPrediction is a forecast generated by an L2 watcher, reconciled
// lazily against later events.
type EventPrediction struct {
	ID            string           `db:"id"`
	WatchID       string           `db:"watch_id"`
	BaseEventID   string           `db:"base_event_id"`
	PredictedType EventType        `db:"predicted_type"`
	Probability   float64          `db:"probability"`
	WindowDays    int              `db:"window_days"`
	TargetDate    time.Time        `db:"target_date"`
	Status        PredictionStatus `db:"status"`
	ActualEventID string           `db:"actual_event_id"`
	CreatedAt     time.Time        `db:"created_at"`
	ResolvedAt    *time.Time       `db:"resolved_at"`
}

// Open reports whether the prediction is still awaiting resolution at ts.
func (p *EventPrediction) Open(ts time.Time) bool {
	return p.Status == PredictionPending && !ts.After(p.TargetDate)
}
