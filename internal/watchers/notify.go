package watchers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// Notifier delivers one triggered watch somewhere. Implementations must
// be safe for concurrent use.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, watch *models.TriggeredWatch, event *models.Event) error
}

// LogNotifier writes triggers to the log. Always registered as the
// fallback handler.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier builds the log handler.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logging.GetLogger("watchers.notify")}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, watch *models.TriggeredWatch, event *models.Event) error {
	n.logger.Info("[%s] rule=%s event=%s type=%s title=%q",
		watch.Level, watch.RuleID, event.ID, event.Type, event.Title)
	return nil
}

// WebhookNotifier POSTs the trigger as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier builds a webhook handler for the given URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

type webhookPayload struct {
	WatchID     string `json:"watch_id"`
	RuleID      string `json:"rule_id"`
	Level       string `json:"level"`
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	Title       string `json:"title"`
	TriggeredAt string `json:"triggered_at"`
	Context     string `json:"context"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, watch *models.TriggeredWatch, event *models.Event) error {
	body, err := json.Marshal(webhookPayload{
		WatchID:     watch.ID,
		RuleID:      watch.RuleID,
		Level:       string(watch.Level),
		EventID:     event.ID,
		EventType:   string(event.Type),
		Title:       event.Title,
		TriggeredAt: watch.TriggeredAt.UTC().Format(time.RFC3339),
		Context:     watch.Context,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
