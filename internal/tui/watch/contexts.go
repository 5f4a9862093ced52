package watch

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/job"
)

// ContextState aggregates the events seen for one compilation context.
type ContextState struct {
	ID         job.ContextID
	Queued     int
	Rejected   int
	Completed  int
	Installed  int
	Disposed   int
	Flushes    int
	TornDown   bool
	LastReason string
}

// InFlight is queued work that has not been installed or disposed yet.
func (c *ContextState) InFlight() int {
	return max(c.Queued-c.Installed-c.Disposed, 0)
}

type eventPayload struct {
	ContextID job.ContextID `json:"context_id"`
	Reason    string        `json:"reason"`
	Error     string        `json:"error"`
}

// applyEvent folds e into the per-context state.
func applyEvent(contexts map[job.ContextID]*ContextState, e events.Event) {
	var p eventPayload
	if err := json.Unmarshal(e.Data, &p); err != nil || p.ContextID == 0 {
		return
	}
	c, ok := contexts[p.ContextID]
	if !ok {
		c = &ContextState{ID: p.ContextID}
		contexts[p.ContextID] = c
	}

	switch e.Type {
	case events.JobQueued:
		c.Queued++
	case events.JobRejected:
		c.Rejected++
		c.LastReason = p.Reason
	case events.JobCompleted:
		c.Completed++
		if p.Error != "" {
			c.LastReason = p.Error
		}
	case events.JobInstalled:
		c.Installed++
	case events.JobDisposed:
		c.Disposed++
		c.LastReason = p.Reason
	case events.ContextFlushed:
		c.Flushes++
	case events.ContextTornDown:
		c.TornDown = true
	}
}

func contextColumns() []table.Column {
	return []table.Column{
		{Title: "ST", Width: 2},
		{Title: "Context", Width: 8},
		{Title: "Queued", Width: 7},
		{Title: "Flight", Width: 7},
		{Title: "Installed", Width: 9},
		{Title: "Disposed", Width: 9},
		{Title: "Rejected", Width: 9},
		{Title: "Last reason", Width: 22},
	}
}

// contextRows lists live contexts first, then torn-down ones, each by id.
func contextRows(contexts map[job.ContextID]*ContextState, active map[job.ContextID]bool) []table.Row {
	list := make([]*ContextState, 0, len(contexts))
	for _, c := range contexts {
		list = append(list, c)
	}
	slices.SortFunc(list, func(a, b *ContextState) int {
		if a.TornDown != b.TornDown {
			if a.TornDown {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.ID, b.ID)
	})

	rows := make([]table.Row, 0, len(list))
	for _, c := range list {
		st := "○"
		switch {
		case c.TornDown:
			st = "✕"
		case active[c.ID]:
			st = "◉"
		case c.InFlight() > 0:
			st = "●"
		}
		rows = append(rows, table.Row{
			st,
			fmt.Sprintf("#%d", c.ID),
			strconv.Itoa(c.Queued),
			strconv.Itoa(c.InFlight()),
			strconv.Itoa(c.Installed),
			strconv.Itoa(c.Disposed),
			strconv.Itoa(c.Rejected),
			c.LastReason,
		})
	}
	return rows
}
