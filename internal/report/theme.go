// Package report renders simulation results for the terminal.
package report

import "github.com/charmbracelet/lipgloss"

// Theme keeps every color of the report in one place.
type Theme struct {
	OK      lipgloss.Style
	Warn    lipgloss.Style
	Failed  lipgloss.Style
	Border  lipgloss.Style
	Title   lipgloss.Style
	Header  lipgloss.Style
	Dim     lipgloss.Style
	Cell    lipgloss.Style
	Numeric lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		OK:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Failed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")).
			Padding(0, 1),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Cell:    lipgloss.NewStyle().Padding(0, 1),
		Numeric: lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right),
	}
}
