package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/curios-os/curios/internal/chat"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/session"
	"github.com/curios-os/curios/internal/storage"
	"github.com/curios-os/curios/internal/tui/theme"
	"github.com/curios-os/curios/internal/tuilog"
)

// Engine is the subset of *chat.Engine the chat screen drives.
type Engine interface {
	Start(ctx context.Context) error
	Snapshot() chat.State
	Subscribe() (<-chan chat.Event, func())
	Send(ctx context.Context, text string) error
	LoadOlder(ctx context.Context) (bool, error)
	ResetSession(ctx context.Context) error
	SetContext(id string) error
	LoggedIn() bool
}

// ChatOptions configures the chat screen.
type ChatOptions struct {
	Engine Engine
	Prefs  storage.Storage // receives the theme preference; may be nil
	Theme  string          // starting theme name
}

// engineEventMsg delivers an engine state change to the TUI.
type engineEventMsg struct {
	Event chat.Event
}

// engineClosedMsg signals that the event channel was closed.
type engineClosedMsg struct{}

type startDoneMsg struct{ err error }
type sendDoneMsg struct{ err error }
type olderDoneMsg struct{ err error }
type resetDoneMsg struct{ err error }

// ChatModel is the chat screen.
type ChatModel struct {
	engine Engine
	prefs  storage.Storage
	events <-chan chat.Event

	state         chat.State
	width, height int
	ready         bool
	viewport      viewport.Model
	input         textinput.Model
	spinner       spinner.Model
	keys          chatKeyMap
	md            *markdownRenderer

	autoScroll   bool
	picker       *contextPicker
	confirmReset bool
	notice       string // feedback for the last local action
	themeName    string
}

// NewChatModel creates the chat screen and subscribes to the engine.
func NewChatModel(opts ChatOptions) ChatModel {
	name := theme.Resolve(opts.Theme, "")
	if _, err := theme.Use(name); err != nil {
		tuilog.Log.Warn("Theme load failed", "theme", name, "error", err)
	}
	rebuildStyles()

	ti := textinput.New()
	ti.Placeholder = i18n.T("tui.chat.placeholder", "Type a message...")
	ti.CharLimit = 4000
	ti.Focus()

	events, _ := opts.Engine.Subscribe()
	m := ChatModel{
		engine:     opts.Engine,
		prefs:      opts.Prefs,
		events:     events,
		state:      opts.Engine.Snapshot(),
		input:      ti,
		spinner:    newSpinner(),
		keys:       defaultChatKeyMap(),
		md:         &markdownRenderer{},
		autoScroll: true,
		themeName:  name,
	}
	m.syncInput()
	return m
}

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Current().GetAccent()))),
	)
}

func (m ChatModel) Init() tea.Cmd {
	engine := m.engine
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForEvent(m.events),
		func() tea.Msg { return startDoneMsg{err: engine.Start(context.Background())} },
	)
}

// waitForEvent returns a command that blocks until the next engine event.
func waitForEvent(ch <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return engineClosedMsg{}
		}
		return engineEventMsg{Event: ev}
	}
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New()
			m.ready = true
		}
		m.layout()
		m.refresh(false)
		return m, nil

	case engineEventMsg:
		m.apply(msg.Event)
		return m, waitForEvent(m.events)

	case engineClosedMsg:
		return m, nil

	case startDoneMsg:
		if msg.err != nil {
			tuilog.Log.Debug("Chat bootstrap finished with error", "error", msg.err)
		}
		return m, nil

	case sendDoneMsg:
		m.notice = sendNotice(msg.err)
		return m, nil

	case olderDoneMsg, resetDoneMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseWheelMsg:
		if m.ready {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			m.autoScroll = m.viewport.AtBottom()
			return m, tea.Batch(cmd, m.maybeLoadOlder())
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmReset {
		switch msg.String() {
		case "y", "Y", "enter":
			m.confirmReset = false
			m.autoScroll = true
			engine := m.engine
			return m, func() tea.Msg { return resetDoneMsg{err: engine.ResetSession(context.Background())} }
		case "n", "N", "esc", "q":
			m.confirmReset = false
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	if m.picker != nil {
		p, outcome := m.picker.update(msg)
		m.picker = &p
		switch outcome {
		case pickerSelected:
			if err := m.engine.SetContext(p.selected().ID); err != nil {
				m.notice = err.Error()
			}
			m.picker = nil
		case pickerCancelled:
			m.picker = nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		m.notice = ""
		m.input.SetValue("")
		return m, nil

	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" || m.state.Sending || m.state.SessionLoading {
			return m, nil
		}
		m.input.SetValue("")
		m.notice = ""
		m.autoScroll = true
		engine := m.engine
		return m, func() tea.Msg { return sendDoneMsg{err: engine.Send(context.Background(), text)} }

	case key.Matches(msg, m.keys.Older):
		return m, m.loadOlder()

	case key.Matches(msg, m.keys.ScrollUp):
		if m.ready {
			m.viewport.PageUp()
			m.autoScroll = m.viewport.AtBottom()
		}
		return m, m.maybeLoadOlder()

	case key.Matches(msg, m.keys.ScrollDown):
		if m.ready {
			m.viewport.PageDown()
			m.autoScroll = m.viewport.AtBottom()
		}
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.autoScroll = true
		if m.ready {
			m.viewport.GotoBottom()
		}
		return m, nil

	case key.Matches(msg, m.keys.Context):
		p := newContextPicker(m.state.ActiveContext)
		m.picker = &p
		return m, nil

	case key.Matches(msg, m.keys.ToggleTheme):
		m.toggleTheme()
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		m.confirmReset = true
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply installs a new engine snapshot. Prepending older history keeps the
// same content in view; anything else follows the bottom when auto-scrolling.
func (m *ChatModel) apply(ev chat.Event) {
	m.state = ev.State
	m.syncInput()
	if !m.ready {
		return
	}
	if ev.Change == chat.ChangePrepended {
		prevOffset := m.viewport.YOffset()
		prevHeight := m.viewport.TotalLineCount()
		m.viewport.SetContent(renderTranscript(m.state, m.viewport.Width(), m.md))
		m.viewport.SetYOffset(history.PreserveScroll(prevOffset, prevHeight, m.viewport.TotalLineCount()))
		return
	}
	m.refresh(ev.Change == chat.ChangeReset)
}

func (m *ChatModel) refresh(forceBottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderTranscript(m.state, m.viewport.Width(), m.md))
	if forceBottom {
		m.autoScroll = true
	}
	if m.autoScroll {
		m.viewport.GotoBottom()
	}
}

func (m *ChatModel) layout() {
	// header, notice, bordered input (3) and help lines
	const chrome = 6
	m.viewport.SetWidth(m.width)
	m.viewport.SetHeight(max(3, m.height-chrome))
	m.input.SetWidth(max(10, m.width-6))
}

// syncInput switches the input to password echo while the backend expects
// a secret.
func (m *ChatModel) syncInput() {
	if m.state.Masking {
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
		m.input.Placeholder = i18n.T("tui.chat.secretPlaceholder", "Enter your secret (hidden)...")
		return
	}
	m.input.EchoMode = textinput.EchoNormal
	m.input.Placeholder = i18n.T("tui.chat.placeholder", "Type a message...")
}

func (m ChatModel) loadOlder() tea.Cmd {
	if !m.state.Window.HasMoreBefore || m.state.LoadingOlder {
		return nil
	}
	engine := m.engine
	return func() tea.Msg {
		_, err := engine.LoadOlder(context.Background())
		return olderDoneMsg{err: err}
	}
}

// maybeLoadOlder loads older history once the view reaches the top.
func (m ChatModel) maybeLoadOlder() tea.Cmd {
	if !m.ready || !m.viewport.AtTop() {
		return nil
	}
	return m.loadOlder()
}

func (m *ChatModel) toggleTheme() {
	name := theme.Toggle(m.themeName)
	if _, err := theme.Use(name); err != nil {
		tuilog.Log.Warn("Theme load failed", "theme", name, "error", err)
		return
	}
	m.themeName = name
	rebuildStyles()
	m.spinner = newSpinner()
	if m.prefs != nil {
		if err := m.prefs.Set(storage.KeyTheme, name); err != nil {
			tuilog.Log.Warn("Saving theme preference failed", "error", err)
		}
	}
	m.refresh(false)
}

// ThemeName returns the active theme name.
func (m ChatModel) ThemeName() string { return m.themeName }

func sendNotice(err error) string {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ""
	case errors.Is(err, chat.ErrSessionLoading):
		return i18n.T("tui.chat.wait", "Still connecting, try again in a moment.")
	case errors.Is(err, chat.ErrSendInFlight):
		return i18n.T("tui.chat.inFlight", "Waiting for the previous reply.")
	default:
		// Backend failures are already in the transcript.
		return ""
	}
}

func (m ChatModel) busy() bool {
	return m.state.SessionLoading || m.state.Sending || m.state.LoadingOlder
}

func (m ChatModel) headerView() string {
	s := GetStyles()
	title := s.Title.Render("CuriOS")

	ctxLabel := m.state.ActiveContext
	if c, ok := chat.LookupContext(m.state.ActiveContext); ok {
		ctxLabel = contextLabel(c)
	}

	parts := []string{session.StateLabel(m.state.State)}
	if p := session.ProviderLabel(m.state.SelectedProvider); p != "" {
		parts = append(parts, p)
	}
	if m.engine.LoggedIn() {
		if u := m.state.User.Label(); u != "" {
			parts = append(parts, u)
		} else {
			parts = append(parts, i18n.T("tui.chat.signedIn", "signed in"))
		}
	} else {
		parts = append(parts, i18n.T("tui.chat.guest", "guest"))
	}
	status := s.StatusBar.Render(strings.Join(parts, " · "))

	header := title + " " + s.ContextTag.Render(ctxLabel) + "  " + status
	if m.busy() {
		header += "  " + m.spinner.View()
	}
	return header
}

func (m ChatModel) noticeView() string {
	s := GetStyles()
	text := m.notice
	switch {
	case m.state.Error != "":
		text = m.state.Error
	case m.state.HistoryError != "":
		text = m.state.HistoryError
	}
	if text == "" {
		return ""
	}
	flat := strings.Join(strings.Fields(text), " ")
	return s.ErrorText.MaxWidth(max(10, m.width)).Render(flat)
}

func (m ChatModel) footerView() string {
	s := GetStyles()
	if m.confirmReset {
		prompt := s.ConfirmPrompt.Render(i18n.T("tui.reset.prompt", "Start a new session? The current conversation is discarded."))
		buttons := s.ConfirmSelected.Render(i18n.T("tui.reset.yes", "y: yes")) + " " + s.ConfirmUnselected.Render(i18n.T("tui.reset.no", "n: no"))
		return prompt + "\n" + buttons + "\n"
	}
	input := s.Input.Width(max(10, m.width-2)).Render(m.input.View())

	var help []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		help = append(help, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return input + "\n" + s.Help.Render(strings.Join(help, "  "))
}

func (m ChatModel) View() tea.View {
	if !m.ready {
		v := tea.NewView(m.spinner.View() + " " + i18n.T("common.loading", "Loading..."))
		v.AltScreen = true
		return v
	}

	body := m.viewport.View()
	if m.picker != nil {
		body = lipgloss.PlaceVertical(m.viewport.Height(), lipgloss.Center, m.picker.view(m.width))
	}

	content := m.headerView() + "\n" + body + "\n" + m.noticeView() + "\n" + m.footerView()
	v := tea.NewView(content)
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	return v
}
