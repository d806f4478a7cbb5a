package tui

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/curios-os/curios/internal/chat"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/tui/theme"
)

// contextPicker is the overlay listing the conversation contexts. Disabled
// contexts are shown but cannot be chosen.
type contextPicker struct {
	items  []chat.ContextItem
	cursor int
	active string
}

type pickerOutcome int

const (
	pickerOpen pickerOutcome = iota
	pickerSelected
	pickerCancelled
)

func newContextPicker(active string) contextPicker {
	p := contextPicker{items: chat.Contexts, active: active}
	for i, c := range p.items {
		if c.ID == active {
			p.cursor = i
		}
	}
	return p
}

// update handles one key. On pickerSelected, selected returns the choice.
func (p contextPicker) update(msg tea.KeyMsg) (contextPicker, pickerOutcome) {
	switch msg.String() {
	case "esc", "q", "ctrl+o":
		return p, pickerCancelled
	case "up", "k", "shift+tab":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j", "tab":
		if p.cursor < len(p.items)-1 {
			p.cursor++
		}
	case "enter":
		if p.items[p.cursor].Enabled {
			return p, pickerSelected
		}
	}
	return p, pickerOpen
}

func (p contextPicker) selected() chat.ContextItem {
	return p.items[p.cursor]
}

func (p contextPicker) view(width int) string {
	t := theme.Current()
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.GetAccent()))
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.TextPrimary.Fg))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.TextMuted.Fg))

	var b strings.Builder
	b.WriteString(titleStyle.Render(i18n.T("tui.context.title", "Context")) + "\n\n")
	for i, item := range p.items {
		prefix := "  "
		style := nameStyle
		if i == p.cursor {
			prefix = "▸ "
			style = style.Bold(true).Foreground(lipgloss.Color(t.GetAccent()))
		}
		if !item.Enabled {
			style = mutedStyle
		}

		name := contextLabel(item)
		if item.ID == p.active {
			name += " *"
		}
		line := prefix + style.Render(name)
		if !item.Enabled {
			line += " " + mutedStyle.Render(i18n.T("tui.context.soon", "(coming soon)"))
		}
		b.WriteString(line + "\n")
		if i == p.cursor {
			b.WriteString("    " + mutedStyle.Render(contextDescription(item)) + "\n")
		}
	}
	b.WriteString("\n" + mutedStyle.Render(i18n.T("tui.context.help", "↑/↓: navigate • enter: select • esc: cancel")))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.GetBorderActive())).
		Padding(1, 2).
		Width(min(width-4, 60))
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, box.Render(b.String()))
}

func contextLabel(c chat.ContextItem) string {
	switch c.ID {
	case "system":
		return i18n.T("tui.context.system", c.Label)
	case "browser":
		return i18n.T("tui.context.browser", c.Label)
	case "files":
		return i18n.T("tui.context.files", c.Label)
	case "notes":
		return i18n.T("tui.context.notes", c.Label)
	}
	return c.Label
}

func contextDescription(c chat.ContextItem) string {
	switch c.ID {
	case "system":
		return i18n.T("tui.context.systemDesc", c.Description)
	case "browser":
		return i18n.T("tui.context.browserDesc", c.Description)
	case "files":
		return i18n.T("tui.context.filesDesc", c.Description)
	case "notes":
		return i18n.T("tui.context.notesDesc", c.Description)
	}
	return c.Description
}
