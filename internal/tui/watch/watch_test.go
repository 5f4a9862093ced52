package watch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/job"
	"github.com/mattjoyce/tierup/internal/report"
)

func ev(id int64, typ string, data map[string]any) events.Event {
	raw, _ := json.Marshal(data)
	return events.Event{ID: id, Type: typ, At: time.Now(), Data: raw}
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 4",
		"event: job.queued",
		`data: {"context_id":1,"sequence":0}`,
		"",
		"id: 5",
		"event: job.installed",
		`data: {"context_id":1,"sequence":0}`,
		"",
		"id: 6",
		"event: job.half",
	}, "\n")

	ch := make(chan events.Event, 4)
	last := readSSE(strings.NewReader(stream), 3, ch)
	close(ch)

	var got []events.Event
	for e := range ch {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].ID)
	assert.Equal(t, events.JobQueued, got[0].Type)
	assert.JSONEq(t, `{"context_id":1,"sequence":0}`, string(got[1].Data))
	assert.Equal(t, int64(5), last, "incomplete trailing event must not advance the id")
}

func TestApplyEventAggregatesPerContext(t *testing.T) {
	contexts := make(map[job.ContextID]*ContextState)
	for _, e := range []events.Event{
		ev(1, events.JobQueued, map[string]any{"context_id": 1}),
		ev(2, events.JobQueued, map[string]any{"context_id": 1}),
		ev(3, events.JobQueued, map[string]any{"context_id": 2}),
		ev(4, events.JobRejected, map[string]any{"context_id": 2, "reason": "queue_full"}),
		ev(5, events.JobInstalled, map[string]any{"context_id": 1}),
		ev(6, events.JobDisposed, map[string]any{"context_id": 2, "reason": "stale"}),
		ev(7, events.ContextTornDown, map[string]any{"context_id": 2}),
		ev(8, "unrelated", map[string]any{"other": true}),
	} {
		applyEvent(contexts, e)
	}

	require.Len(t, contexts, 2)
	c1 := contexts[1]
	assert.Equal(t, 2, c1.Queued)
	assert.Equal(t, 1, c1.Installed)
	assert.Equal(t, 1, c1.InFlight())

	c2 := contexts[2]
	assert.Equal(t, 1, c2.Rejected)
	assert.Equal(t, 1, c2.Disposed)
	assert.Equal(t, "stale", c2.LastReason)
	assert.True(t, c2.TornDown)
	assert.Zero(t, c2.InFlight())
}

func TestContextRowsOrdersLiveFirst(t *testing.T) {
	contexts := map[job.ContextID]*ContextState{
		1: {ID: 1, TornDown: true},
		2: {ID: 2, Queued: 3},
		3: {ID: 3},
	}
	rows := contextRows(contexts, map[job.ContextID]bool{3: true})

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"#2", "#3", "#1"}, []string{rows[0][1], rows[1][1], rows[2][1]})
	assert.Equal(t, "●", rows[0][0])
	assert.Equal(t, "◉", rows[1][0])
	assert.Equal(t, "✕", rows[2][0])
	assert.Len(t, rows[0], len(contextColumns()))
}

func TestDescribeEvent(t *testing.T) {
	e := ev(1, events.JobDisposed, map[string]any{
		"context_id": 7, "sequence": 3, "trace_id": "0123456789abcdef", "reason": "flushed",
	})
	assert.Equal(t, "ctx#7 seq 3 [01234567] flushed", describeEvent(e))

	raw := events.Event{Data: json.RawMessage(`"` + strings.Repeat("x", 80) + `"`)}
	assert.True(t, strings.HasSuffix(describeEvent(raw), "..."))

	line := formatEvent(e, report.NewDefaultTheme())
	assert.Contains(t, line, events.JobDisposed)
}

func TestModelSkipsReplayedEvents(t *testing.T) {
	m := New("http://127.0.0.1:0", "")
	var model tea.Model = *m

	model = update(t, model, eventMsg(ev(10, events.JobQueued, map[string]any{"context_id": 1})))
	model = update(t, model, eventMsg(ev(10, events.JobQueued, map[string]any{"context_id": 1})))
	model = update(t, model, eventMsg(ev(9, events.JobQueued, map[string]any{"context_id": 1})))
	model = update(t, model, eventMsg(ev(11, events.JobInstalled, map[string]any{"context_id": 1})))

	got := model.(Model)
	assert.Equal(t, int64(11), got.lastID)
	assert.Len(t, got.eventLog, 2)
	assert.Equal(t, 1, got.contexts[1].Queued)
	assert.Equal(t, []table.Row{{"○", "#1", "1", "0", "1", "0", "0", ""}}, got.contextTable.Rows())
}

func TestModelViewAfterResize(t *testing.T) {
	m := New("http://127.0.0.1:0", "")
	assert.Contains(t, m.View(), "Connecting to")

	var model tea.Model = *m
	model = update(t, model, tea.WindowSizeMsg{Width: 120, Height: 40})
	model = update(t, model, statsMsg{QueueCapacity: 16, Slots: []job.ContextID{0, 2}, Contexts: 1})
	view := model.View()

	assert.Contains(t, view, "TIERUP WATCH")
	assert.Contains(t, view, "slots 1/2")
	assert.Contains(t, view, "Waiting for events")
}

func update(t *testing.T, m tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next
}
