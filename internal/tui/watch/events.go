package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/report"
)

func formatEvent(e events.Event, theme report.Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.JobInstalled, events.JobCompleted:
		typeStyle = theme.OK
	case events.JobRejected, events.JobDisposed:
		typeStyle = theme.Warn
	case events.ContextFlushed, events.ContextTornDown:
		typeStyle = theme.Header.UnsetPadding()
	default:
		typeStyle = theme.Dim
	}

	return fmt.Sprintf("%s %s %s", ts, typeStyle.Render(fmt.Sprintf("%-18s", e.Type)), describeEvent(e))
}

// describeEvent picks the fields worth a glance out of the payload.
func describeEvent(e events.Event) string {
	var data struct {
		ContextID *uint64 `json:"context_id"`
		Sequence  *uint64 `json:"sequence"`
		TraceID   string  `json:"trace_id"`
		Reason    string  `json:"reason"`
		Error     string  `json:"error"`
		ElapsedMS *int64  `json:"elapsed_ms"`
	}
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	if data.ContextID != nil {
		parts = append(parts, fmt.Sprintf("ctx#%d", *data.ContextID))
	}
	if data.Sequence != nil {
		parts = append(parts, fmt.Sprintf("seq %d", *data.Sequence))
	}
	if id := data.TraceID; id != "" {
		parts = append(parts, "["+id[:min(len(id), 8)]+"]")
	}
	if data.ElapsedMS != nil {
		parts = append(parts, fmt.Sprintf("%dms", *data.ElapsedMS))
	}
	if data.Reason != "" {
		parts = append(parts, data.Reason)
	}
	if data.Error != "" {
		parts = append(parts, "error: "+data.Error)
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}
