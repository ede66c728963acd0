package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finradar/finradar/internal/models"
)

func webSource(url string) *models.Source {
	return &models.Source{
		Code:       "rbc",
		Kind:       models.SourceWeb,
		TrustLevel: 7,
		Enabled:    true,
		URL:        url,
		FetchLimit: 50,
	}
}

func TestWebAdapterFetchSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		w.Write([]byte(`[
			{"id": "n3", "url": "https://x/3", "title": "Третья новость", "body": "текст", "published": "2026-03-02T12:00:00Z"},
			{"id": "n2", "url": "https://x/2", "title": "Вторая новость", "body": "текст", "published": "02 March 2026 10:00 UTC"},
			{"id": "broken", "url": "https://x/9", "title": "", "body": "", "published": "2026-03-02T09:00:00Z"},
			{"id": "n1", "url": "https://x/1", "title": "Старая новость", "body": "текст", "published": "2026-02-01T00:00:00Z"}
		]`))
	}))
	defer srv.Close()

	adapter := NewWebAdapter(webSource(srv.URL))
	cursor := &models.Cursor{SourceCode: "rbc", LastTimestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	records, err := adapter.FetchSince(context.Background(), cursor, 10)
	require.NoError(t, err)

	// The titleless item is skipped, the pre-cursor item filtered, and
	// the rest come back oldest first.
	require.Len(t, records, 2)
	assert.Equal(t, "n2", records[0].ExternalID)
	assert.Equal(t, "n3", records[1].ExternalID)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), records[0].PublishedAt)
	assert.Equal(t, 7, records[0].TrustLevel)
	assert.NotEmpty(t, records[0].ContentHash)
}

func TestWebAdapterAuthFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	adapter := NewWebAdapter(webSource(srv.URL))
	_, err := adapter.FetchSince(context.Background(), nil, 10)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestWebAdapterServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewWebAdapter(webSource(srv.URL))
	_, err := adapter.FetchSince(context.Background(), nil, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuth)
}

func TestStreamAdapterDrainsAndFiltersCursor(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		frames := []string{
			`{"id": "m1", "title": "Уже обработано", "text": "x", "published": "2026-03-02T09:00:00Z"}`,
			`not json`,
			`{"id": "m2", "title": "Новое сообщение", "text": "x", "published": "2026-03-02T10:30:00Z"}`,
			`{"id": "m3", "title": "Ещё одно", "text": "x", "published": "2026-03-02T11:00:00Z"}`,
		}
		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		// Hold the connection open; the adapter stops on idle timeout.
		time.Sleep(3 * time.Second)
	}))
	defer srv.Close()

	src := &models.Source{
		Code:       "feed",
		Kind:       models.SourceStream,
		TrustLevel: 9,
		Enabled:    true,
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		FetchLimit: 50,
	}
	adapter := NewStreamAdapter(src)
	require.NoError(t, adapter.Open(context.Background()))
	defer adapter.Close()

	cursor := &models.Cursor{
		SourceCode:     "feed",
		LastExternalID: "m1",
		LastTimestamp:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	records, err := adapter.FetchSince(context.Background(), cursor, 10)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "m2", records[0].ExternalID)
	assert.Equal(t, "m3", records[1].ExternalID)
	assert.Equal(t, 9, records[0].TrustLevel)
}

func TestStreamAdapterHonorsLimit(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, id := range []string{"a", "b", "c"} {
			frame := `{"id": "` + id + `", "title": "t", "text": "x", "published": "2026-03-02T10:00:00Z"}`
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		}
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	src := &models.Source{
		Code: "feed", Kind: models.SourceStream, TrustLevel: 5, Enabled: true,
		URL: "ws" + strings.TrimPrefix(srv.URL, "http"), FetchLimit: 50,
	}
	adapter := NewStreamAdapter(src)
	require.NoError(t, adapter.Open(context.Background()))
	defer adapter.Close()

	records, err := adapter.FetchSince(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestNewAdapterByKind(t *testing.T) {
	stream, err := NewAdapter(&models.Source{Code: "s", Kind: models.SourceStream, TrustLevel: 5})
	require.NoError(t, err)
	assert.IsType(t, &StreamAdapter{}, stream)

	web, err := NewAdapter(&models.Source{Code: "w", Kind: models.SourceWeb, TrustLevel: 5})
	require.NoError(t, err)
	assert.IsType(t, &WebAdapter{}, web)

	_, err = NewAdapter(&models.Source{Code: "x", Kind: "carrier_pigeon", TrustLevel: 5})
	assert.Error(t, err)
}
