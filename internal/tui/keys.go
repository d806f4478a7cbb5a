package tui

import (
	"charm.land/bubbles/v2/key"

	"github.com/curios-os/curios/internal/i18n"
)

// chatKeyMap defines key bindings for the chat screen.
type chatKeyMap struct {
	Send        key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	Older       key.Binding
	Bottom      key.Binding
	Context     key.Binding
	ToggleTheme key.Binding
	Reset       key.Binding
	Back        key.Binding
	Quit        key.Binding
}

func defaultChatKeyMap() chatKeyMap {
	return chatKeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", i18n.T("tui.help.send", "send")),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+up"),
			key.WithHelp("pgup", i18n.T("tui.help.scrollUp", "scroll up")),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+down"),
			key.WithHelp("pgdn", i18n.T("tui.help.scrollDown", "scroll down")),
		),
		Older: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", i18n.T("tui.help.older", "load older")),
		),
		Bottom: key.NewBinding(
			key.WithKeys("ctrl+g", "end"),
			key.WithHelp("end", i18n.T("tui.help.bottom", "latest")),
		),
		Context: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", i18n.T("tui.help.context", "context")),
		),
		ToggleTheme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", i18n.T("tui.help.theme", "theme")),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", i18n.T("tui.help.reset", "new session")),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", i18n.T("tui.help.back", "back")),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", i18n.T("tui.help.quit", "quit")),
		),
	}
}

// ShortHelp lists the bindings shown in the footer.
func (k chatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.ScrollUp, k.Older, k.Context, k.ToggleTheme, k.Reset, k.Quit}
}
