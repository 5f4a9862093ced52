package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/executor"
	"github.com/mattjoyce/tierup/internal/job"
)

type stubStats struct {
	stats executor.Stats
}

func (s stubStats) Stats() executor.Stats { return s.stats }

func newTestServer(token string) (*Server, *events.Hub) {
	hub := events.NewHub(16)
	stats := stubStats{stats: executor.Stats{
		QueueLength:   3,
		QueueCapacity: 1024,
		Slots:         []job.ContextID{0, 4, 0, 7},
		Contexts:      2,
		Completed:     11,
	}}
	return New(Config{Listen: "localhost:0", Token: token}, stats, hub, slog.Default()), hub
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rr, req)
	return rr
}

func TestHandleHealthz_NoAuth(t *testing.T) {
	s, _ := newTestServer("secret")

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthzResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.QueueDepth)
	assert.Equal(t, 2, resp.ActiveSlots)
	assert.Equal(t, int64(2), resp.Contexts)
}

func TestHandleStats_RequiresToken(t *testing.T) {
	s, _ := newTestServer("secret")

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = serve(s, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var st executor.Stats
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&st))
	assert.Equal(t, int64(11), st.Completed)
	assert.Equal(t, []job.ContextID{0, 4, 0, 7}, st.Slots)
}

func TestHandleStats_NoTokenConfigured(t *testing.T) {
	s, _ := newTestServer("")
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleEventSnapshot(t *testing.T) {
	s, hub := newTestServer("")
	hub.Publish(events.JobQueued, map[string]any{"context_id": 1})
	hub.Publish(events.JobCompleted, map[string]any{"context_id": 1})
	hub.Publish(events.JobInstalled, map[string]any{"context_id": 1})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/events?since=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp EventsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, events.JobCompleted, resp.Events[0].Type)
	assert.Equal(t, int64(3), resp.LastID)
	assert.JSONEq(t, `{"context_id":1}`, string(resp.Events[1].Data))

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/events?since=3", nil))
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Empty(t, resp.Events)
	assert.Equal(t, int64(3), resp.LastID)
}

func TestHandleEventSnapshot_BadSince(t *testing.T) {
	s, _ := newTestServer("")
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/events?since=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleEventStream_ReplaysBufferedEvents(t *testing.T) {
	s, hub := newTestServer("")
	hub.Publish(events.JobQueued, map[string]any{"context_id": 1})
	hub.Publish(events.ContextTornDown, map[string]any{"context_id": 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events/stream", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")

	rr := serve(s, req)
	body := rr.Body.String()
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.NotContains(t, body, "event: "+events.JobQueued)
	assert.Contains(t, body, "id: 2\nevent: "+events.ContextTornDown)
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "Bearer   abc  ", want: "abc"},
		{header: "", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer   ", wantErr: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractAPIKey(req)
		if tt.wantErr {
			assert.Error(t, err, "header %q", tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidateAPIKey(t *testing.T) {
	assert.True(t, ValidateAPIKey("k", "k"))
	assert.False(t, ValidateAPIKey("k", ""))
	assert.False(t, ValidateAPIKey("", "k"))
	assert.False(t, ValidateAPIKey("k1", "k"))
}
