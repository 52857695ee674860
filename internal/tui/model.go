// Package tui is the interactive chat screen: a session list, the
// transcript rendered as markdown and an input line whose placeholder
// follows the active mode.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/1-kabir/cfm/internal/chat"
	"github.com/1-kabir/cfm/internal/directory"
	"github.com/1-kabir/cfm/internal/dispatch"
	"github.com/1-kabir/cfm/internal/mode"
	"github.com/1-kabir/cfm/internal/types"
)

// maxRenderedEntries caps how much of a long transcript is redrawn on
// every change.
const maxRenderedEntries = 200

// Options configures the chat screen.
type Options struct {
	// Theme selects the glamour style: auto, dark, light or notty.
	Theme    string
	Username string
	// ExportPath reports where an exported artifact was written.
	ExportPath func(conversationID int64, id types.ArtifactID) string
}

type (
	transcriptChangedMsg struct{}
	sessionChangedMsg    struct{}

	sendDoneMsg struct {
		result *dispatch.Result
		err    error
	}
	refreshedMsg struct {
		items []directory.Item
		err   error
	}
	openedMsg struct {
		id      int64
		changed bool
		err     error
	}
	exportedMsg struct {
		id             types.ArtifactID
		conversationID int64
		err            error
	}
)

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctrl   *chat.Controller
	ctx    context.Context
	opts   Options
	styles Styles

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	items  []directory.Item
	cursor int

	status   string
	failed   bool
	width    int
	height   int
	ready    bool
	spinning bool
}

// New builds the chat screen model around ctrl.
func New(ctx context.Context, ctrl *chat.Controller, opts Options) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = ctrl.Session.Mode().Hint()
	ti.Prompt = "> "
	ti.PromptStyle = styles.Prompt
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		ctrl:    ctrl,
		ctx:     ctx,
		opts:    opts,
		styles:  styles,
		input:   ti,
		spinner: sp,
		status:  "type /help for commands",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refresh())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.syncView()
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case transcriptChangedMsg:
		m.syncView()
		return m, nil

	case sessionChangedMsg:
		m.input.Placeholder = m.ctrl.Session.Mode().Hint()
		m.items = m.ctrl.Directory.Items()
		if m.ctrl.Session.Awaiting() && !m.spinning {
			m.spinning = true
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Session.Awaiting() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sendDoneMsg:
		m.handleSendDone(msg)
		if msg.result != nil && msg.result.Created {
			return m, m.refresh()
		}
		return m, nil

	case refreshedMsg:
		m.items = msg.items
		if m.cursor >= len(m.items) {
			m.cursor = max(len(m.items)-1, 0)
		}
		if msg.err != nil {
			m.setError(fmt.Sprintf("could not load sessions: %v", msg.err))
		}
		return m, nil

	case openedMsg:
		switch {
		case msg.err != nil:
			m.setError(fmt.Sprintf("open #%d: %v", msg.id, msg.err))
		case msg.changed:
			m.setStatus(fmt.Sprintf("opened session #%d", msg.id))
		}
		m.items = m.ctrl.Directory.Items()
		return m, nil

	case exportedMsg:
		switch {
		case errors.Is(msg.err, chat.ErrNoArtifact):
			m.setError("nothing to save yet")
		case msg.err != nil:
			m.setError(msg.err.Error())
		case m.opts.ExportPath != nil:
			m.setStatus("saved " + m.opts.ExportPath(msg.conversationID, msg.id))
		default:
			m.setStatus("saved artifact " + string(msg.id))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return tea.Quit, true
	case "enter":
		return m.submit(), true
	case "tab":
		return m.switchMode(), true
	case "ctrl+n":
		m.ctrl.NewChat()
		m.setStatus("new session, the first message creates it")
		return nil, true
	case "ctrl+r":
		return m.refresh(), true
	case "ctrl+up":
		if m.cursor > 0 {
			m.cursor--
		}
		return nil, true
	case "ctrl+down":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return nil, true
	case "ctrl+o":
		if m.cursor < len(m.items) {
			return m.open(m.items[m.cursor].ID), true
		}
		return nil, true
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd, true
	}
	return nil, false
}

// submit runs a slash command or sends the input as a message.
func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c, err := parseCommand(text)
	if err != nil {
		m.setError(err.Error())
		return nil
	}

	switch c.kind {
	case cmdNone:
		return m.send(text)
	case cmdMode:
		m.input.Reset()
		if c.hasArg {
			return m.setMode(c)
		}
		return m.switchMode()
	case cmdNew:
		m.input.Reset()
		m.ctrl.NewChat()
		m.setStatus("new session, the first message creates it")
	case cmdOpen:
		m.input.Reset()
		return m.open(c.id)
	case cmdRefresh:
		m.input.Reset()
		return m.refresh()
	case cmdSave:
		m.input.Reset()
		return m.export()
	case cmdHelp:
		m.input.Reset()
		m.setStatus(helpText)
	case cmdQuit:
		return tea.Quit
	}
	return nil
}

func (m *Model) send(text string) tea.Cmd {
	if m.ctrl.Session.Awaiting() {
		m.setError("still waiting for the previous reply")
		return nil
	}
	m.input.Reset()
	m.setStatus("")

	ctrl, ctx := m.ctrl, m.ctx
	m.spinning = true
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := ctrl.Send(ctx, text)
		return sendDoneMsg{result: res, err: err}
	})
}

func (m *Model) handleSendDone(msg sendDoneMsg) {
	var de *dispatch.Error
	switch {
	case msg.err == nil:
		if msg.result != nil && msg.result.Extraction != nil {
			m.setError("the build could not be extracted, showing the raw reply")
			return
		}
		m.setStatus("")
	case errors.As(msg.err, &de):
		m.setError(fmt.Sprintf("send failed: %s", de.Kind))
	case errors.Is(msg.err, dispatch.ErrStale):
		slog.Debug("discarded reply for a previous session")
	case errors.Is(msg.err, dispatch.ErrBusy):
		m.setError("still waiting for the previous reply")
	default:
		m.setError(msg.err.Error())
	}
}

func (m *Model) switchMode() tea.Cmd {
	t, err := m.ctrl.SwitchMode(m.ctx)
	return m.afterTransition(t, err)
}

func (m *Model) setMode(c command) tea.Cmd {
	t, err := m.ctrl.SetMode(m.ctx, c.mode)
	return m.afterTransition(t, err)
}

func (m *Model) afterTransition(t mode.Transition, err error) tea.Cmd {
	if errors.Is(err, mode.ErrNoConversation) {
		m.setError("open or start a session before switching modes")
		return nil
	}
	if err != nil {
		m.setError(err.Error())
		return nil
	}
	m.input.Placeholder = t.To.Hint()
	if t.Changed() {
		m.setStatus("mode " + t.To.Label())
	}
	return nil
}

func (m *Model) open(id int64) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		changed, err := ctrl.Open(ctx, id)
		return openedMsg{id: id, changed: changed, err: err}
	}
}

func (m *Model) refresh() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		items, err := ctrl.Refresh(ctx)
		return refreshedMsg{items: items, err: err}
	}
}

func (m *Model) export() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		id, convID, err := ctrl.Export(ctx)
		return exportedMsg{id: id, conversationID: convID, err: err}
	}
}

func (m *Model) setStatus(s string) {
	m.status, m.failed = s, false
}

func (m *Model) setError(s string) {
	m.status, m.failed = s, true
}

// resize lays out the viewport beside the sidebar and rebuilds the
// markdown renderer for the new width.
func (m *Model) resize() {
	w := m.width - sidebarWidth - 3
	h := m.height - 5
	if w < 20 {
		w = 20
	}
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
	m.input.Width = m.width - 4
	m.renderer = newRenderer(m.opts.Theme, w-2)
}

func (m *Model) syncView() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcriptView())
	m.viewport.GotoBottom()
}

// transcriptView renders the newest maxRenderedEntries entries.
func (m *Model) transcriptView() string {
	return renderTranscript(m.ctrl.Transcript.Tail(maxRenderedEntries), m.styles, m.renderer, m.viewport.Width)
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		renderSidebar(m.items, m.cursor, m.styles, m.viewport.Height),
		" ",
		m.viewport.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, m.header(), body, m.footer(), m.input.View())
}

func (m Model) header() string {
	snap := m.ctrl.Session.Snapshot()
	title := "new session"
	if snap.HasConversation() {
		title = fmt.Sprintf("#%d %s", snap.ConversationID, snap.Title)
	}
	left := m.styles.Title.Render("cfm") + "  " + title + "  " + m.styles.Badge(snap.Mode)
	if m.opts.Username == "" {
		return left
	}
	return left + "  " + m.styles.Subtle.Render(m.opts.Username)
}

func (m Model) footer() string {
	if m.ctrl.Session.Awaiting() {
		return m.spinner.View() + " " + m.styles.Subtle.Render("awaiting reply...")
	}
	if m.failed {
		return m.styles.Error.Render(m.status)
	}
	return m.styles.Subtle.Render(m.status)
}
