package history

import (
	"slices"

	"github.com/curios-os/curios/internal/api"
)

// Window is the ordered transcript (oldest first) and its pagination state.
type Window struct {
	Messages      []Message
	OldestCursor  *string
	NewestCursor  *string
	HasMoreBefore bool
}

// Pinned holds the text of the synthetic top entries.
type Pinned struct {
	Title    string
	Greeting string
}

// Initial returns the window shown before any history is known, and after
// a reset: exactly the header and the greeting, with no cursors.
func Initial(p Pinned) Window {
	return Window{Messages: []Message{Header(p.Title), Greeting(p.Greeting)}}
}

// Clone returns a deep copy.
func (w Window) Clone() Window {
	out := Window{
		Messages:      slices.Clone(w.Messages),
		HasMoreBefore: w.HasMoreBefore,
	}
	out.OldestCursor = cloneCursor(w.OldestCursor)
	out.NewestCursor = cloneCursor(w.NewestCursor)
	return out
}

func cloneCursor(c *string) *string {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

// leadingPinned returns how many pinned entries sit at the top.
func (w Window) leadingPinned() int {
	n := 0
	for n < len(w.Messages) && w.Messages[n].Pinned != PinNone {
		n++
	}
	return n
}

// Unpinned returns the server and local messages, without pinned entries.
func (w Window) Unpinned() []Message {
	out := make([]Message, 0, len(w.Messages))
	for _, m := range w.Messages {
		if m.Pinned == PinNone {
			out = append(out, m)
		}
	}
	return out
}

// OldestTimestamp returns the creation time of the oldest confirmed message.
func (w Window) OldestTimestamp() string {
	for _, m := range w.Messages {
		if m.Pinned == PinNone && m.CreatedAt != "" {
			return m.CreatedAt
		}
	}
	return ""
}

func (w Window) fingerprints() map[string]bool {
	seen := make(map[string]bool, len(w.Messages))
	for _, m := range w.Messages {
		if m.Pinned == PinNone {
			seen[m.Fingerprint()] = true
		}
	}
	return seen
}

func fromPage(page *api.MessagesPage) []Message {
	out := make([]Message, 0, len(page.Messages))
	for _, sm := range page.Messages {
		out = append(out, FromServer(sm))
	}
	return out
}

// Replace installs an initial page: the header, the fetched messages, and
// the greeting only when nothing was fetched. Both cursors and
// HasMoreBefore come from the page.
func Replace(p Pinned, page *api.MessagesPage) Window {
	fetched := fromPage(page)
	msgs := make([]Message, 0, len(fetched)+2)
	msgs = append(msgs, Header(p.Title))
	msgs = append(msgs, fetched...)
	if len(fetched) == 0 {
		msgs = append(msgs, Greeting(p.Greeting))
	}
	return Window{
		Messages:      msgs,
		OldestCursor:  cloneCursor(page.PageInfo.OldestCursor),
		NewestCursor:  cloneCursor(page.PageInfo.NewestCursor),
		HasMoreBefore: page.PageInfo.HasMoreBefore,
	}
}

// Prepend inserts an older page between the pinned entries and the rest.
// Messages already present are skipped. OldestCursor moves only when the
// page supplies one.
func Prepend(w Window, page *api.MessagesPage) (Window, int) {
	out := w.Clone()
	seen := w.fingerprints()

	older := make([]Message, 0, len(page.Messages))
	for _, m := range fromPage(page) {
		fp := m.Fingerprint()
		if seen[fp] {
			continue
		}
		seen[fp] = true
		older = append(older, m)
	}

	at := w.leadingPinned()
	out.Messages = slices.Insert(out.Messages, at, older...)
	if page.PageInfo.OldestCursor != nil {
		out.OldestCursor = cloneCursor(page.PageInfo.OldestCursor)
	}
	out.HasMoreBefore = page.PageInfo.HasMoreBefore
	return out, len(older)
}

// Append adds local messages at the end.
func Append(w Window, msgs ...Message) Window {
	out := w.Clone()
	out.Messages = append(out.Messages, msgs...)
	return out
}

// MergeStats reports what CatchUp did with each incoming message.
type MergeStats struct {
	Appended   int
	Confirmed  int
	Duplicates int
}

// CatchUp merges a page of newer messages. A message whose fingerprint is
// already present is dropped. Otherwise it confirms the first pending
// optimistic message with the same role, kind and content, or is appended.
// NewestCursor moves whenever the page supplies one, even if it is empty.
func CatchUp(w Window, page *api.MessagesPage) (Window, MergeStats) {
	out := w.Clone()
	seen := w.fingerprints()
	var stats MergeStats

	for _, incoming := range fromPage(page) {
		fp := incoming.Fingerprint()
		if seen[fp] {
			stats.Duplicates++
			continue
		}
		seen[fp] = true

		if i := findPending(out.Messages, incoming); i >= 0 {
			out.Messages[i].CreatedAt = incoming.CreatedAt
			stats.Confirmed++
			continue
		}
		out.Messages = append(out.Messages, incoming)
		stats.Appended++
	}

	if page.PageInfo.NewestCursor != nil {
		out.NewestCursor = cloneCursor(page.PageInfo.NewestCursor)
	}
	return out, stats
}

func findPending(msgs []Message, incoming Message) int {
	for i, m := range msgs {
		if m.Optimistic() &&
			m.Role == incoming.Role &&
			m.Kind == incoming.Kind &&
			m.Content() == incoming.Content() {
			return i
		}
	}
	return -1
}

// PreserveScroll returns the scroll offset that keeps the same content in
// view after prevHeight lines of content grew to newHeight by insertion
// above the viewport.
func PreserveScroll(prevOffset, prevHeight, newHeight int) int {
	offset := prevOffset + (newHeight - prevHeight)
	if offset < 0 {
		return 0
	}
	return offset
}
