package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/tierup/internal/executor"
	"github.com/mattjoyce/tierup/internal/report"
)

// HealthState combines /healthz and /stats polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Connected     bool
	LastCheck     time.Time
	Stats         executor.Stats
}

func renderHeader(h HealthState, activity Activity, theme report.Theme, width int) string {
	innerWidth := width - 4

	statusText := theme.OK.Render("HEALTHY")
	switch {
	case !h.Connected:
		statusText = theme.Failed.Render("CONNECTING")
	case h.Status != "ok" && h.Status != "":
		statusText = theme.Warn.Render(strings.ToUpper(h.Status))
	}

	lastEvent := "never"
	if !activity.LastEvent().IsZero() {
		lastEvent = time.Since(activity.LastEvent()).Round(time.Second).String() + " ago"
	}

	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	title := theme.Title.Render(" TIERUP WATCH")
	pad := max(innerWidth-lipgloss.Width(title)-lipgloss.Width(clock)-4, 1)
	titleLine := title + strings.Repeat(" ", pad) + clock + " "

	s := h.Stats
	busy := 0
	for _, id := range s.Slots {
		if id != 0 {
			busy++
		}
	}
	statsLine := fmt.Sprintf(" %s  up %s  queue %d/%d  slots %d/%d  contexts %d",
		statusText,
		formatDuration(time.Duration(h.UptimeSeconds)*time.Second),
		s.QueueLength, s.QueueCapacity,
		busy, len(s.Slots),
		s.Contexts,
	)
	countLine := fmt.Sprintf(" completed %d  rejected %d  panicked %d",
		s.Completed, s.Rejected, s.Panicked)
	activityLine := fmt.Sprintf(" %s %.1f ev/s  last event %s",
		activity.Render(theme), activity.Rate(), lastEvent)

	return theme.Border.Width(innerWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, countLine, activityLine),
	)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
