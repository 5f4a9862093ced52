package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/tierup/internal/job"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	st := s.stats.Stats()
	active := 0
	for _, ctx := range st.Slots {
		if ctx != job.None {
			active++
		}
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueueDepth:    st.QueueLength,
		ActiveSlots:   active,
		Contexts:      st.Contexts,
	})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.stats.Stats())
}

// handleEventSnapshot handles GET /events?since=N with the buffered events
// newer than N.
func (s *Server) handleEventSnapshot(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}

	evs := s.events.SnapshotSince(since)
	resp := EventsResponse{Events: evs, LastID: since}
	if len(evs) > 0 {
		resp.LastID = evs[len(evs)-1].ID
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
