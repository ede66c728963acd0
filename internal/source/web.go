package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	dps "github.com/markusmobius/go-dateparser"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// webItem is one article in the polled JSON listing. Publish timestamps
// come in whatever format the site uses; go-dateparser handles them.
type webItem struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published string `json:"published"`
}

// WebAdapter polls an HTTP listing endpoint. The cursor is a date: each
// fetch asks for items after the last committed publish timestamp.
type WebAdapter struct {
	source *models.Source
	client *http.Client
	parser *dps.Parser
	logger *logging.Logger
}

// NewWebAdapter builds a web adapter for one configured source.
func NewWebAdapter(src *models.Source) *WebAdapter {
	return &WebAdapter{
		source: src,
		client: &http.Client{Timeout: 30 * time.Second},
		parser: &dps.Parser{},
		logger: logging.GetLogger("source." + src.Code),
	}
}

func (a *WebAdapter) Source() *models.Source { return a.source }

// Open is a no-op for plain HTTP polling.
func (a *WebAdapter) Open(context.Context) error { return nil }

// FetchSince polls the listing and returns records published after the
// cursor date, oldest first. 401/403 is ErrAuth; other non-2xx statuses
// are retryable transport errors. Malformed items are skipped.
func (a *WebAdapter) FetchSince(ctx context.Context, cursor *models.Cursor, limit int) ([]*models.Record, error) {
	if limit <= 0 {
		limit = a.source.FetchLimit
	}
	since := a.sinceTime(cursor)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.listURL(since, limit), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", a.source.Code, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return nil, fmt.Errorf("%w: poll %s returned %d", ErrAuth, a.source.Code, resp.StatusCode)
	case resp.StatusCode != 200:
		return nil, fmt.Errorf("poll %s: unexpected status %d", a.source.Code, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("poll %s: read body: %w", a.source.Code, err)
	}
	var items []webItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("poll %s: decode listing: %w", a.source.Code, err)
	}

	var records []*models.Record
	for i := range items {
		record, err := a.toRecord(&items[i])
		if err != nil {
			a.logger.Warn("skipping item %s: %v", items[i].ID, err)
			continue
		}
		if !record.PublishedAt.After(since) {
			continue
		}
		records = append(records, record)
		if len(records) == limit {
			break
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PublishedAt.Before(records[j].PublishedAt)
	})
	return records, nil
}

func (a *WebAdapter) sinceTime(cursor *models.Cursor) time.Time {
	if cursor != nil && !cursor.LastTimestamp.IsZero() {
		return cursor.LastTimestamp
	}
	lookback := a.source.LookbackDays
	if lookback <= 0 {
		lookback = 1
	}
	return time.Now().UTC().AddDate(0, 0, -lookback)
}

func (a *WebAdapter) listURL(since time.Time, limit int) string {
	q := url.Values{}
	q.Set("from", since.UTC().Format(time.RFC3339))
	q.Set("limit", fmt.Sprintf("%d", limit))
	sep := "?"
	if u, err := url.Parse(a.source.URL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return a.source.URL + sep + q.Encode()
}

func (a *WebAdapter) toRecord(item *webItem) (*models.Record, error) {
	parsed, err := a.parser.Parse(&dps.Configuration{DefaultTimezone: time.UTC}, item.Published)
	if err != nil {
		return nil, fmt.Errorf("bad publish timestamp %q: %w", item.Published, err)
	}
	record := &models.Record{
		ID:          uuid.NewString(),
		SourceCode:  a.source.Code,
		ExternalID:  item.ID,
		URL:         item.URL,
		Title:       item.Title,
		Body:        item.Body,
		PublishedAt: parsed.Time.UTC(),
		TrustLevel:  a.source.TrustLevel,
		IngestedAt:  time.Now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	record.ComputeContentHash()
	return record, nil
}

// Close is a no-op for plain HTTP polling.
func (a *WebAdapter) Close() error { return nil }
