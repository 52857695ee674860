package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/1-kabir/cfm/internal/classify"
	"github.com/1-kabir/cfm/internal/directory"
	"github.com/1-kabir/cfm/internal/types"
)

const sidebarWidth = 28

func newRenderer(theme string, width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	opt := glamour.WithAutoStyle()
	switch theme {
	case "dark", "light", "notty":
		opt = glamour.WithStandardStyle(theme)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

// renderTranscript draws every entry in order.
func renderTranscript(entries []types.Entry, styles Styles, r *glamour.TermRenderer, width int) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderEntry(e, styles, r, width))
	}
	return b.String()
}

func renderEntry(e types.Entry, styles Styles, r *glamour.TermRenderer, width int) string {
	switch e.Role {
	case types.RoleUser:
		return styles.User.Render("you") + "\n" + lipgloss.NewStyle().Width(width).Render(e.Text) + "\n"
	case types.RoleSystem:
		return styles.System.Render("! "+e.Text) + "\n"
	}

	if e.Kind == types.KindArtifact && e.Artifact != nil {
		return styles.Assistant.Render("assistant") + "\n" + renderArtifact(e.Artifact, styles, width)
	}
	return styles.Assistant.Render("assistant") + "\n" + markdown(e.Text, r)
}

func renderArtifact(a *types.BuildArtifact, styles Styles, width int) string {
	title := "Build artifact"
	if a.BuildID != 0 {
		title = fmt.Sprintf("Build #%d", a.BuildID)
	}
	preview := a.Preview
	if len([]rune(a.Payload)) > len([]rune(a.Preview)) {
		preview += "…"
	}
	body := styles.CardTitle.Render(title) + "\n" +
		preview + "\n" +
		styles.Subtle.Render("/save exports the full payload")

	cardWidth := width - 2
	if cardWidth < 20 {
		cardWidth = 20
	}
	return styles.Card.Width(cardWidth).Render(body) + "\n"
}

func markdown(text string, r *glamour.TermRenderer) string {
	if r == nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// renderSidebar lists conversations newest first with the active one
// highlighted and the cursor reversed.
func renderSidebar(items []directory.Item, cursor int, styles Styles, height int) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Sessions") + "\n")
	if len(items) == 0 {
		b.WriteString(styles.Subtle.Render("none yet"))
	}
	for i, item := range items {
		label := classify.Truncate(fmt.Sprintf("#%d %s", item.ID, item.Title), sidebarWidth-3)
		switch {
		case i == cursor:
			label = styles.ItemCursor.Render(label)
		case item.Active:
			label = styles.ItemActive.Render(label)
		}
		marker := "  "
		if item.Active {
			marker = "> "
		}
		b.WriteString(marker + label + "\n")
	}
	return styles.Sidebar.Width(sidebarWidth).Height(height).Render(b.String())
}
