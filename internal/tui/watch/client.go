package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/tierup/internal/api"
	"github.com/mattjoyce/tierup/internal/events"
	"github.com/mattjoyce/tierup/internal/executor"
)

// --- Message types ---

type eventMsg events.Event

type healthMsg api.HealthzResponse

type statsMsg executor.Stats

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{ lastID int64 }
type reconnectMsg struct{}

// --- Commands ---

func newRequest(apiURL, apiKey, path string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(apiURL, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

// subscribeToEvents streams /events/stream into ch, resuming after lastID.
// It returns sseDisconnectedMsg carrying the last id seen once the stream ends.
func subscribeToEvents(apiURL, apiKey string, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := newRequest(apiURL, apiKey, "/events/stream")
		if err != nil {
			return errMsg(err)
		}
		if lastID > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{lastID: lastID}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("event stream: %s", resp.Status))
		}

		return sseDisconnectedMsg{lastID: readSSE(resp.Body, lastID, ch)}
	}
}

// readSSE decodes server-sent events from r into ch and returns the id of the
// last event delivered.
func readSSE(r io.Reader, lastID int64, ch chan<- events.Event) int64 {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cur events.Event
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				cur.Data = json.RawMessage(data.String())
				if cur.At.IsZero() {
					cur.At = time.Now()
				}
				ch <- cur
				lastID = max(lastID, cur.ID)
			}
			cur = events.Event{}
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				cur.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			cur.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			data.WriteString(line[6:])
		}
	}
	return lastID
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func getJSON(apiURL, apiKey, path string, out any) error {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := newRequest(apiURL, apiKey, path)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchHealth(apiURL, apiKey string) tea.Msg {
	var h api.HealthzResponse
	if err := getJSON(apiURL, apiKey, "/healthz", &h); err != nil {
		return errMsg(err)
	}
	return healthMsg(h)
}

func fetchStats(apiURL, apiKey string) tea.Msg {
	var s executor.Stats
	if err := getJSON(apiURL, apiKey, "/stats", &s); err != nil {
		return errMsg(err)
	}
	return statsMsg(s)
}
