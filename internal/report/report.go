package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mattjoyce/tierup/internal/sim"
)

var columns = []string{
	"context", "mode", "submitted", "rejected", "installed", "disposed", "lost", "prioritized", "parked",
}

// Render draws the per-context table, a totals row and an executor summary.
func Render(res *sim.Result, theme Theme) string {
	rows := make([][]string, 0, len(res.Contexts)+1)
	for _, c := range res.Contexts {
		rows = append(rows, row(c, mode(c)))
	}
	total := res.Totals()
	rows = append(rows, row(total, ""))
	last := len(rows) - 1

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#874BFD"))).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(r, c int) lipgloss.Style {
			switch {
			case r == table.HeaderRow:
				return theme.Header
			case c == 6 && rows[r][c] != "0":
				return theme.Failed.Padding(0, 1).Align(lipgloss.Right)
			case r == last:
				return theme.Title.Padding(0, 1)
			case c >= 2:
				return theme.Numeric
			default:
				return theme.Cell
			}
		})

	status := theme.OK.Render("no jobs lost")
	if err := res.Check(); err != nil {
		status = theme.Failed.Render(err.Error())
	}

	st := res.Executor
	summary := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("tierup simulation"),
		theme.Dim.Render(fmt.Sprintf("elapsed %s  slots %d  queue %d/%d  completed %d  panicked %d",
			res.Elapsed.Round(time.Millisecond), len(st.Slots),
			st.QueueLength, st.QueueCapacity, st.Completed, st.Panicked)),
		theme.Dim.Render(fmt.Sprintf("fallback compiles %d  functions optimized %d",
			total.Fallbacks, total.Optimized)),
		status,
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		theme.Border.Render(summary),
		t.Render(),
	)
}

func mode(c sim.ContextResult) string {
	switch {
	case c.Abrupt && c.Efficiency:
		return "abrupt,eco"
	case c.Abrupt:
		return "abrupt"
	case c.Efficiency:
		return "eco"
	default:
		return "full"
	}
}

func row(c sim.ContextResult, mode string) []string {
	name := c.Name
	if c.ID != 0 {
		name = fmt.Sprintf("%d %s", c.ID, c.Name)
	}
	return []string{
		name,
		mode,
		strconv.FormatInt(c.Counters.Submitted, 10),
		strconv.FormatInt(c.Counters.Rejected, 10),
		strconv.FormatInt(c.Counters.Installed, 10),
		strconv.FormatInt(c.Counters.Disposed, 10),
		strconv.FormatInt(c.Lost(), 10),
		strconv.Itoa(c.Prioritized),
		c.Parked.Round(time.Microsecond).String(),
	}
}
