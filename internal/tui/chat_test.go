package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/chat"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/storage"
	"github.com/curios-os/curios/internal/tui/theme"
)

type fakeEngine struct {
	mu       sync.Mutex
	state    chat.State
	events   chan chat.Event
	sent     []string
	resets   int
	contexts []string
	older    int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		state: chat.State{
			State:         chat.InitialState,
			ActiveContext: chat.DefaultContext,
			Window:        history.Initial(history.Pinned{Title: "CuriOS", Greeting: "Welcome"}),
		},
		events: make(chan chat.Event, 8),
	}
}

func (f *fakeEngine) Start(context.Context) error { return nil }
func (f *fakeEngine) Snapshot() chat.State        { return f.state }
func (f *fakeEngine) LoggedIn() bool              { return false }

func (f *fakeEngine) Subscribe() (<-chan chat.Event, func()) {
	return f.events, func() {}
}

func (f *fakeEngine) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeEngine) LoadOlder(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.older++
	return true, nil
}

func (f *fakeEngine) ResetSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeEngine) SetContext(id string) error {
	f.contexts = append(f.contexts, id)
	return chat.ValidateContext(id)
}

func newTestChat(t *testing.T, prefs storage.Storage) (ChatModel, *fakeEngine) {
	t.Helper()
	t.Setenv("CURIOS_HOME", t.TempDir())
	fe := newFakeEngine()
	m := NewChatModel(ChatOptions{Engine: fe, Prefs: prefs, Theme: theme.Dark})
	model, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	t.Cleanup(func() { theme.Use(theme.Dark); rebuildStyles() })
	return model.(ChatModel), fe
}

func press(t *testing.T, m ChatModel, k tea.KeyPressMsg) (ChatModel, tea.Cmd) {
	t.Helper()
	model, cmd := m.Update(k)
	return model.(ChatModel), cmd
}

func keyRune(r rune) tea.KeyPressMsg { return tea.KeyPressMsg{Code: r, Text: string(r)} }
func keyCtrl(r rune) tea.KeyPressMsg { return tea.KeyPressMsg{Code: r, Mod: tea.ModCtrl} }

var keyEnter = tea.KeyPressMsg{Code: tea.KeyEnter}

func TestChatModel_SendClearsInput(t *testing.T) {
	m, fe := newTestChat(t, nil)
	m.input.SetValue("hello there")

	m, cmd := press(t, m, keyEnter)
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	if msg, ok := cmd().(sendDoneMsg); !ok || msg.err != nil {
		t.Fatalf("command result = %#v", msg)
	}
	if m.input.Value() != "" {
		t.Errorf("input = %q, want cleared", m.input.Value())
	}
	if len(fe.sent) != 1 || fe.sent[0] != "hello there" {
		t.Errorf("sent = %v", fe.sent)
	}
}

func TestChatModel_BlankInputNotSent(t *testing.T) {
	m, fe := newTestChat(t, nil)
	m.input.SetValue("   ")
	if _, cmd := press(t, m, keyEnter); cmd != nil {
		t.Error("blank input produced a command")
	}
	if len(fe.sent) != 0 {
		t.Errorf("sent = %v", fe.sent)
	}
}

func TestChatModel_EnterWhileBusyKeepsInput(t *testing.T) {
	tests := []struct {
		name string
		set  func(*chat.State)
	}{
		{"sending", func(s *chat.State) { s.Sending = true }},
		{"session loading", func(s *chat.State) { s.SessionLoading = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, fe := newTestChat(t, nil)
			st := fe.state
			tt.set(&st)
			model, _ := m.Update(engineEventMsg{Event: chat.Event{Change: chat.ChangeStatus, State: st}})
			m = model.(ChatModel)

			m.input.SetValue("next")
			m, cmd := press(t, m, keyEnter)
			if cmd != nil {
				t.Error("enter while busy produced a command")
			}
			if m.input.Value() != "next" {
				t.Errorf("input = %q, want kept", m.input.Value())
			}
			if len(fe.sent) != 0 {
				t.Errorf("sent = %v", fe.sent)
			}
		})
	}
}

func TestChatModel_MaskingUsesPasswordEcho(t *testing.T) {
	m, fe := newTestChat(t, nil)

	st := fe.state
	st.Masking = true
	model, _ := m.Update(engineEventMsg{Event: chat.Event{Change: chat.ChangeSession, State: st}})
	m = model.(ChatModel)
	if m.input.EchoMode != textinput.EchoPassword {
		t.Error("secret turn does not hide input")
	}

	st.Masking = false
	model, _ = m.Update(engineEventMsg{Event: chat.Event{Change: chat.ChangeSession, State: st}})
	if model.(ChatModel).input.EchoMode != textinput.EchoNormal {
		t.Error("input still hidden after secret turn")
	}
}

func TestChatModel_ResetNeedsConfirmation(t *testing.T) {
	m, fe := newTestChat(t, nil)

	m, _ = press(t, m, keyCtrl('r'))
	if !m.confirmReset {
		t.Fatal("ctrl+r did not ask for confirmation")
	}
	m, cmd := press(t, m, keyRune('n'))
	if cmd != nil || m.confirmReset {
		t.Fatal("declining still resets")
	}

	m, _ = press(t, m, keyCtrl('r'))
	_, cmd = press(t, m, keyRune('y'))
	if cmd == nil {
		t.Fatal("confirming produced no command")
	}
	cmd()
	if fe.resets != 1 {
		t.Errorf("resets = %d", fe.resets)
	}
}

func TestChatModel_ContextPicker(t *testing.T) {
	m, fe := newTestChat(t, nil)

	m, _ = press(t, m, keyCtrl('o'))
	if m.picker == nil {
		t.Fatal("picker not opened")
	}
	if !strings.Contains(m.View().Content, "Browser") {
		t.Error("picker does not list contexts")
	}

	// Disabled contexts cannot be picked.
	m, _ = press(t, m, tea.KeyPressMsg{Code: tea.KeyDown})
	m, _ = press(t, m, keyEnter)
	if m.picker == nil || len(fe.contexts) != 0 {
		t.Fatal("disabled context was selected")
	}

	m, _ = press(t, m, tea.KeyPressMsg{Code: tea.KeyUp})
	m, _ = press(t, m, keyEnter)
	if m.picker != nil {
		t.Error("picker still open after selection")
	}
	if len(fe.contexts) != 1 || fe.contexts[0] != "system" {
		t.Errorf("SetContext calls = %v", fe.contexts)
	}
}

func TestChatModel_ThemeTogglePersists(t *testing.T) {
	prefs := storage.NewMemory()
	m, _ := newTestChat(t, prefs)

	m, _ = press(t, m, keyCtrl('t'))
	if m.ThemeName() != theme.Light || theme.Current().Name != theme.Light {
		t.Fatalf("theme = %q / %q", m.ThemeName(), theme.Current().Name)
	}
	if v, _, _ := prefs.Get(storage.KeyTheme); v != theme.Light {
		t.Errorf("stored theme = %q", v)
	}

	m, _ = press(t, m, keyCtrl('t'))
	if v, _, _ := prefs.Get(storage.KeyTheme); v != theme.Dark || m.ThemeName() != theme.Dark {
		t.Errorf("stored theme after second toggle = %q", v)
	}
}

func transcriptState(from, to int, more bool) chat.State {
	page := &api.MessagesPage{PageInfo: api.PageInfo{HasMoreBefore: more, OldestCursor: ptr(fmt.Sprint(from))}}
	for i := from; i < to; i++ {
		page.Messages = append(page.Messages, api.ServerMessage{
			Role:      api.RoleUser,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: fmt.Sprintf("2026-01-01T00:%02d:00Z", i),
		})
	}
	return chat.State{
		State:         "READY",
		ActiveContext: chat.DefaultContext,
		Window:        history.Replace(history.Pinned{Title: "CuriOS"}, page),
	}
}

func ptr(s string) *string { return &s }

func TestChatModel_PrependKeepsViewAnchored(t *testing.T) {
	m, _ := newTestChat(t, nil)

	model, _ := m.Update(engineEventMsg{Event: chat.Event{Change: chat.ChangeReplaced, State: transcriptState(20, 40, true)}})
	m = model.(ChatModel)
	m.viewport.GotoTop()
	m.autoScroll = false
	before := m.viewport.TotalLineCount()

	model, _ = m.Update(engineEventMsg{Event: chat.Event{Change: chat.ChangePrepended, State: transcriptState(10, 40, true)}})
	m = model.(ChatModel)

	added := m.viewport.TotalLineCount() - before
	if added <= 0 {
		t.Fatalf("prepend added %d lines", added)
	}
	if got := m.viewport.YOffset(); got != added {
		t.Errorf("YOffset = %d, want %d", got, added)
	}
}

func TestChatModel_ScrollToTopLoadsOlder(t *testing.T) {
	m, fe := newTestChat(t, nil)
	model, _ := m.Update(engineEventMsg{Event: chat.Event{Change: chat.ChangeReplaced, State: transcriptState(0, 40, true)}})
	m = model.(ChatModel)

	var cmd tea.Cmd
	for i := 0; i < 50 && !m.viewport.AtTop(); i++ {
		m, cmd = press(t, m, tea.KeyPressMsg{Code: tea.KeyPgUp})
	}
	if cmd == nil {
		t.Fatal("reaching the top did not request older history")
	}
	cmd()
	if fe.older != 1 {
		t.Errorf("LoadOlder calls = %d", fe.older)
	}
}

func TestChatModel_ErrorShownInFooter(t *testing.T) {
	m, fe := newTestChat(t, nil)
	st := fe.state
	st.Error = "There was an error.\n\nDetails: boom"
	model, _ := m.Update(engineEventMsg{Event: chat.Event{Change: chat.ChangeSession, State: st}})

	if view := model.(ChatModel).View().Content; !strings.Contains(view, "Details: boom") {
		t.Error("session error not shown")
	}
}

func TestSendNotice(t *testing.T) {
	if sendNotice(nil) != "" || sendNotice(context.Canceled) != "" {
		t.Error("no notice expected for success or abort")
	}
	if sendNotice(chat.ErrSendInFlight) == "" || sendNotice(chat.ErrSessionLoading) == "" {
		t.Error("local send errors need a notice")
	}
	if sendNotice(fmt.Errorf("status 500")) != "" {
		t.Error("backend errors are already in the transcript")
	}
}
