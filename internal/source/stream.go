package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

// drainIdle is how long a fetch keeps reading after the last message
// before deciding the stream is drained for now.
const drainIdle = 2 * time.Second

// streamMessage is the wire format of one feed item.
type streamMessage struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	URL       string `json:"url"`
	Published string `json:"published"` // RFC 3339
}

// StreamAdapter ingests a websocket feed. The cursor's external id is a
// high-water-mark: everything at or before it is already committed.
type StreamAdapter struct {
	source *models.Source
	conn   *websocket.Conn
	logger *logging.Logger
}

// NewStreamAdapter builds a stream adapter for one configured source.
func NewStreamAdapter(src *models.Source) *StreamAdapter {
	return &StreamAdapter{
		source: src,
		logger: logging.GetLogger("source." + src.Code),
	}
}

func (a *StreamAdapter) Source() *models.Source { return a.source }

// Open dials the feed. A 401/403 handshake response is an auth failure.
func (a *StreamAdapter) Open(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, a.source.URL, nil)
	if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
		return fmt.Errorf("%w: dial %s returned %d", ErrAuth, a.source.Code, resp.StatusCode)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", a.source.Code, err)
	}
	a.conn = conn
	return nil
}

// FetchSince drains currently-available messages, newest last. Messages
// at or before the cursor's high-water-mark are dropped; malformed
// frames are skipped with a warning.
func (a *StreamAdapter) FetchSince(ctx context.Context, cursor *models.Cursor, limit int) ([]*models.Record, error) {
	if a.conn == nil {
		return nil, fmt.Errorf("source %s: not open", a.source.Code)
	}
	if limit <= 0 {
		limit = a.source.FetchLimit
	}

	var records []*models.Record
	for len(records) < limit {
		deadline := time.Now().Add(drainIdle)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := a.conn.SetReadDeadline(deadline); err != nil {
			return records, err
		}

		_, payload, err := a.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				return records, fmt.Errorf("stream %s closed: %w", a.source.Code, err)
			}
			// Idle timeout: the feed is drained for this cycle.
			return records, nil
		}

		var msg streamMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			a.logger.Warn("skipping malformed frame: %v", err)
			continue
		}
		record, err := a.toRecord(&msg)
		if err != nil {
			a.logger.Warn("skipping frame %s: %v", msg.ID, err)
			continue
		}
		if behindCursor(record, cursor) {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (a *StreamAdapter) toRecord(msg *streamMessage) (*models.Record, error) {
	published, err := time.Parse(time.RFC3339, msg.Published)
	if err != nil {
		return nil, fmt.Errorf("bad publish timestamp %q: %w", msg.Published, err)
	}
	record := &models.Record{
		ID:          uuid.NewString(),
		SourceCode:  a.source.Code,
		ExternalID:  msg.ID,
		URL:         msg.URL,
		Title:       msg.Title,
		Body:        msg.Text,
		PublishedAt: published.UTC(),
		TrustLevel:  a.source.TrustLevel,
		IngestedAt:  time.Now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	record.ComputeContentHash()
	return record, nil
}

// behindCursor reports whether the record is at or before the committed
// high-water-mark.
func behindCursor(record *models.Record, cursor *models.Cursor) bool {
	if cursor == nil {
		return false
	}
	if record.ExternalID == cursor.LastExternalID {
		return true
	}
	return !cursor.LastTimestamp.IsZero() && record.PublishedAt.Before(cursor.LastTimestamp)
}

// Close shuts the connection down.
func (a *StreamAdapter) Close() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
