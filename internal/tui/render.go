package tui

import (
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/curios-os/curios/internal/chat"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/tui/theme"
	"github.com/curios-os/curios/internal/tuilog"
)

// markdownRenderer caches a glamour renderer for one style and width.
type markdownRenderer struct {
	style string
	width int
	tr    *glamour.TermRenderer
}

func (r *markdownRenderer) render(text, style string, width int) string {
	if r.tr == nil || r.style != style || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			tuilog.Log.Debug("Markdown renderer unavailable", "style", style, "error", err)
			r.tr = nil
			return text
		}
		r.tr, r.style, r.width = tr, style, width
	}
	out, err := r.tr.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// renderTranscript draws the window for a viewport of the given width.
func renderTranscript(st chat.State, width int, md *markdownRenderer) string {
	s := GetStyles()
	width = max(20, width)
	bubbleWidth := max(16, width*2/3)

	var blocks []string
	switch {
	case st.LoadingOlder:
		blocks = append(blocks, center(width, s.MoreText.Render(i18n.T("tui.chat.loadingOlder", "Loading older messages..."))))
	case st.Window.HasMoreBefore:
		blocks = append(blocks, center(width, s.MoreText.Render(i18n.T("tui.chat.moreBefore", "Older messages available (ctrl+l)"))))
	}

	for _, m := range st.Window.Messages {
		if b := renderMessage(m, width, bubbleWidth, md); b != "" {
			blocks = append(blocks, b)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(m history.Message, width, bubbleWidth int, md *markdownRenderer) string {
	s := GetStyles()

	switch m.Pinned {
	case history.PinHeader:
		return center(width, s.Logo.Render("✦ "+m.Display+" ✦"))
	case history.PinGreeting:
		return center(width, s.Greeting.Width(min(width, 72)).Align(lipgloss.Center).Render(m.Display))
	}

	var body string
	switch {
	case m.Kind == history.KindSecret:
		// Always the mask token, whatever the secret's length.
		body = s.SecretBubble.Render(history.MaskToken)
	case m.Position == history.PositionRight:
		body = s.UserBubble.Width(min(bubbleWidth, lipgloss.Width(m.Display)+2)).Render(m.Display)
	case m.Position == history.PositionCenter:
		body = s.MoreText.Render(m.Display)
	default:
		body = s.AssistantBubble.Render(md.render(m.Display, theme.Current().GlamourStyle(), bubbleWidth))
	}

	if ts := relativeTimestamp(m.CreatedAt); ts != "" {
		body += "\n" + s.Timestamp.Render(ts)
	}

	switch m.Position {
	case history.PositionRight:
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, body)
	case history.PositionCenter:
		return center(width, body)
	default:
		return body
	}
}

func center(width int, s string) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}

// relativeTimestamp formats a server timestamp; unconfirmed messages have none.
func relativeTimestamp(createdAt string) string {
	if createdAt == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return ""
	}
	return i18n.RelativeTime(t)
}
