package tui

import (
	"sync"

	"charm.land/lipgloss/v2"

	"github.com/curios-os/curios/internal/tui/theme"
)

// Styles holds all the computed lipgloss styles for the TUI.
type Styles struct {
	// Header
	Logo       lipgloss.Style
	Title      lipgloss.Style
	ContextTag lipgloss.Style
	StatusBar  lipgloss.Style

	// Transcript
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SecretBubble    lipgloss.Style
	Greeting        lipgloss.Style
	Timestamp       lipgloss.Style
	MoreText        lipgloss.Style

	// Footer
	ErrorText lipgloss.Style
	Help      lipgloss.Style
	Input     lipgloss.Style

	// Confirm dialog
	ConfirmPrompt     lipgloss.Style
	ConfirmSelected   lipgloss.Style
	ConfirmUnselected lipgloss.Style
}

var (
	stylesMu sync.Mutex
	styles   *Styles
)

// GetStyles returns the current styles, building them from the theme if needed.
func GetStyles() *Styles {
	stylesMu.Lock()
	defer stylesMu.Unlock()
	if styles == nil {
		s := buildStyles(theme.Current())
		styles = &s
	}
	return styles
}

// rebuildStyles recomputes the styles after the theme changed.
func rebuildStyles() {
	stylesMu.Lock()
	defer stylesMu.Unlock()
	s := buildStyles(theme.Current())
	styles = &s
}

func styleFrom(s theme.Style) lipgloss.Style {
	st := lipgloss.NewStyle()
	if s.Fg != "" {
		st = st.Foreground(lipgloss.Color(s.Fg))
	}
	if s.Bg != "" {
		st = st.Background(lipgloss.Color(s.Bg))
	}
	if s.Bold {
		st = st.Bold(true)
	}
	if s.Italic {
		st = st.Italic(true)
	}
	if s.Underline {
		st = st.Underline(true)
	}
	return st
}

func buildStyles(t theme.Theme) Styles {
	return Styles{
		Logo:       styleFrom(t.Logo),
		Title:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.GetAccent())),
		ContextTag: styleFrom(t.ContextTag).Padding(0, 1),
		StatusBar:  styleFrom(t.StatusBar),

		UserBubble:      styleFrom(t.UserBubble).Padding(0, 1),
		AssistantBubble: styleFrom(t.AssistantBubble),
		SecretBubble:    styleFrom(t.SecretBubble).Padding(0, 1),
		Greeting:        styleFrom(t.Greeting),
		Timestamp:       styleFrom(t.TextMuted).Faint(true),
		MoreText:        styleFrom(t.TextMuted).Italic(true),

		ErrorText: styleFrom(t.ErrorText),
		Help:      styleFrom(t.TextMuted),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.GetBorderActive())).
			Padding(0, 1),

		ConfirmPrompt:     styleFrom(t.ConfirmPrompt),
		ConfirmSelected:   styleFrom(t.ConfirmSelected).Padding(0, 2),
		ConfirmUnselected: styleFrom(t.ConfirmUnselected).Padding(0, 2),
	}
}
