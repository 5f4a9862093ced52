// Package watch is a live terminal view of a running `tierup serve`, fed by
// its stats API and event stream.
package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/executor"
	"github.com/mattjoyce/tierup/internal/job"
	"github.com/mattjoyce/tierup/internal/report"
)

const eventLogSize = 200

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	health   HealthState
	contexts map[job.ContextID]*ContextState
	eventLog []events.Event
	lastID   int64
	activity Activity

	contextTable table.Model
	eventView    viewport.Model
	theme        report.Theme

	hubEvents chan events.Event
	lastError string
}

// New creates a watch model for the API at apiURL. apiKey may be empty when
// the server runs without a token.
func New(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns(contextColumns()),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:       apiURL,
		apiKey:       apiKey,
		contexts:     make(map[job.ContextID]*ContextState),
		hubEvents:    make(chan events.Event, 256),
		contextTable: t,
		eventView:    viewport.New(80, 10),
		theme:        report.NewDefaultTheme(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchStats(m.apiURL, m.apiKey) },
		tick(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.eventView, cmd = m.eventView.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.contextTable.SetWidth(m.width - 6)
		m.contextTable.SetHeight(max(m.height/3, 4))
		m.eventView.Width = m.width - 6
		m.eventView.Height = max(m.height/3, 4)
		m.refreshEvents()
		return m, nil

	case tickMsg:
		m.activity.Trim(time.Time(msg))
		return m, tick()

	case eventMsg:
		e := events.Event(msg)
		if e.ID > 0 && e.ID <= m.lastID {
			return m, receiveNextEvent(m.hubEvents)
		}
		m.lastID = max(m.lastID, e.ID)

		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > eventLogSize {
			m.eventLog = m.eventLog[:eventLogSize]
		}
		m.activity.OnEvent(time.Now())
		applyEvent(m.contexts, e)
		m.refreshContexts()
		m.refreshEvents()

		m.health.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})

	case statsMsg:
		m.health.Stats = executor.Stats(msg)
		m.refreshContexts()
		return m, tea.Tick(time.Second, func(time.Time) tea.Msg {
			return fetchStats(m.apiURL, m.apiKey)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastID = max(m.lastID, msg.lastID)
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		// The pending receiveNextEvent keeps reading the shared channel.
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})
	}

	var cmd tea.Cmd
	m.contextTable, cmd = m.contextTable.Update(msg)
	return m, cmd
}

func (m *Model) refreshContexts() {
	active := make(map[job.ContextID]bool)
	for _, id := range m.health.Stats.Slots {
		if id != 0 {
			active[id] = true
		}
	}
	m.contextTable.SetRows(contextRows(m.contexts, active))
}

func (m *Model) refreshEvents() {
	if len(m.eventLog) == 0 {
		m.eventView.SetContent(m.theme.Dim.Render("Waiting for events..."))
		return
	}
	lines := make([]string, len(m.eventLog))
	for i, e := range m.eventLog {
		lines[i] = formatEvent(e, m.theme)
	}
	m.eventView.SetContent(strings.Join(lines, "\n"))
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to " + m.apiURL + "..."
	}

	box := m.theme.Border.Width(m.width - 4)
	parts := []string{
		renderHeader(m.health, m.activity, m.theme, m.width),
		box.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("CONTEXTS"),
			m.contextTable.View(),
		)),
		box.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render(fmt.Sprintf("EVENTS (last id %d)", m.lastID)),
			m.eventView.View(),
		)),
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.Failed.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Quit • [↑/↓] Contexts • [PgUp/PgDn] Events"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
