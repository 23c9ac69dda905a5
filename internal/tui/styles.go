// Package tui is the terminal chapter browser and verse player.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#8BC34A")
	muted   = lipgloss.Color("#6b7280")
	danger  = lipgloss.Color("#e53935")
	warning = lipgloss.Color("#FFC107")
)

// Styles groups the lipgloss styles used by the views.
type Styles struct {
	Title       lipgloss.Style
	Label       lipgloss.Style
	Item        lipgloss.Style
	Selected    lipgloss.Style
	Verse       lipgloss.Style
	ActiveVerse lipgloss.Style
	Cursor      lipgloss.Style
	Translation lipgloss.Style
	Pending     lipgloss.Style
	Error       lipgloss.Style
	Help        lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(accent),
		Label:       lipgloss.NewStyle().Foreground(muted),
		Item:        lipgloss.NewStyle().PaddingLeft(2),
		Selected:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		Verse:       lipgloss.NewStyle(),
		ActiveVerse: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Cursor:      lipgloss.NewStyle().Foreground(warning),
		Translation: lipgloss.NewStyle().Foreground(muted).PaddingLeft(4),
		Pending:     lipgloss.NewStyle().Italic(true).Foreground(muted).PaddingLeft(4),
		Error:       lipgloss.NewStyle().Foreground(danger),
		Help:        lipgloss.NewStyle().Foreground(muted),
	}
}
