package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/1-kabir/cfm/pkg/backend"
)

// Styles groups the lipgloss styles used by the chat screen.
type Styles struct {
	Title      lipgloss.Style
	Subtle     lipgloss.Style
	User       lipgloss.Style
	Assistant  lipgloss.Style
	System     lipgloss.Style
	Error      lipgloss.Style
	Prompt     lipgloss.Style
	Spinner    lipgloss.Style
	Card       lipgloss.Style
	CardTitle  lipgloss.Style
	Sidebar    lipgloss.Style
	ItemActive lipgloss.Style
	ItemCursor lipgloss.Style
	Planning   lipgloss.Style
	Building   lipgloss.Style
}

// DefaultStyles returns the adaptive color scheme.
func DefaultStyles() Styles {
	accent := lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	subtle := lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#FFFFFF"))

	return Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(accent),
		Subtle:     lipgloss.NewStyle().Foreground(subtle),
		User:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#1F7A1F", Dark: "#73D673"}),
		Assistant:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		System:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#E3B341"}),
		Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("#E5484D")),
		Prompt:     lipgloss.NewStyle().Foreground(accent),
		Spinner:    lipgloss.NewStyle().Foreground(accent),
		Card:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#E8892B")).Padding(0, 1),
		CardTitle:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E8892B")),
		Sidebar:    lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, true, false, false).BorderForeground(subtle).PaddingRight(1),
		ItemActive: lipgloss.NewStyle().Bold(true).Foreground(accent),
		ItemCursor: lipgloss.NewStyle().Reverse(true),
		Planning:   badge.Background(lipgloss.Color("#2F6FEB")),
		Building:   badge.Background(lipgloss.Color("#D9731A")),
	}
}

// Badge renders the mode label.
func (s Styles) Badge(m backend.Mode) string {
	if m == backend.ModeBuilding {
		return s.Building.Render(m.Label())
	}
	return s.Planning.Render(m.Label())
}
