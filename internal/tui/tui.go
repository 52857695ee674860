package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1-kabir/cfm/internal/chat"
)

// Run shows the chat screen until the operator quits.
func Run(ctx context.Context, ctrl *chat.Controller, opts Options) error {
	p := tea.NewProgram(New(ctx, ctrl, opts), tea.WithAltScreen(), tea.WithContext(ctx))

	// Listeners fire from inside Update as well as from background sends,
	// so delivery must not block the event loop.
	ctrl.Transcript.OnChange(func() { go p.Send(transcriptChangedMsg{}) })
	ctrl.Session.OnChange(func() { go p.Send(sessionChangedMsg{}) })

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat screen: %w", err)
	}
	return nil
}
