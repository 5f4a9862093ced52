package api

import "github.com/mattjoyce/tierup/internal/events"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	ActiveSlots   int    `json:"active_slots"`
	Contexts      int64  `json:"contexts"`
}

// EventsResponse is returned by GET /events.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	// LastID is the id to pass as ?since= on the next poll.
	LastID int64 `json:"last_id"`
}
