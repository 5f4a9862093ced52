package watch

import (
	"strings"
	"time"

	"github.com/mattjoyce/tierup/internal/report"
)

// rateWindow is how far back Activity counts events.
const rateWindow = 5 * time.Second

// Activity tracks the event rate over a sliding window and renders it as a
// five-dot meter.
type Activity struct {
	stamps    []time.Time
	lastEvent time.Time
	peak      float64
}

func (a *Activity) OnEvent(at time.Time) {
	a.stamps = append(a.stamps, at)
	a.lastEvent = at
}

// Trim drops stamps older than the window and returns the current rate.
func (a *Activity) Trim(now time.Time) float64 {
	cut := 0
	for cut < len(a.stamps) && now.Sub(a.stamps[cut]) > rateWindow {
		cut++
	}
	a.stamps = a.stamps[cut:]
	rate := float64(len(a.stamps)) / rateWindow.Seconds()
	a.peak = max(a.peak, rate)
	return rate
}

func (a Activity) Rate() float64 {
	return float64(len(a.stamps)) / rateWindow.Seconds()
}

func (a Activity) LastEvent() time.Time { return a.lastEvent }

func (a Activity) Render(theme report.Theme) string {
	lit := 0
	if a.peak > 0 {
		lit = int(5 * a.Rate() / a.peak)
		if lit == 0 && len(a.stamps) > 0 {
			lit = 1
		}
	}
	var b strings.Builder
	for i := range 5 {
		if i < lit {
			b.WriteString(theme.OK.Render("●"))
		} else {
			b.WriteString(theme.Dim.Render("○"))
		}
	}
	return b.String()
}
