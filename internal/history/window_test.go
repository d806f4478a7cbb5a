package history

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/curios-os/curios/internal/api"
)

var pinned = Pinned{Title: "CuriOS", Greeting: "Welcome"}

func cur(s string) *string { return &s }

func page(oldest, newest string, more bool, msgs ...api.ServerMessage) *api.MessagesPage {
	p := &api.MessagesPage{Messages: msgs, PageInfo: api.PageInfo{HasMoreBefore: more}}
	if oldest != "" {
		p.PageInfo.OldestCursor = cur(oldest)
	}
	if newest != "" {
		p.PageInfo.NewestCursor = cur(newest)
	}
	return p
}

func sm(role, content, at string) api.ServerMessage {
	return api.ServerMessage{Role: role, Content: content, CreatedAt: at, DataInputType: api.ChatTypeText}
}

// contents summarizes a window for comparison, ignoring generated IDs.
func contents(w Window) []string {
	out := make([]string, 0, len(w.Messages))
	for _, m := range w.Messages {
		switch m.Pinned {
		case PinHeader:
			out = append(out, "[header]")
		case PinGreeting:
			out = append(out, "[greeting]")
		default:
			out = append(out, m.Role+":"+m.Display)
		}
	}
	return out
}

func TestInitial(t *testing.T) {
	w := Initial(pinned)
	if diff := cmp.Diff([]string{"[header]", "[greeting]"}, contents(w)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if w.OldestCursor != nil || w.NewestCursor != nil || w.HasMoreBefore {
		t.Errorf("initial window has pagination state: %+v", w)
	}
}

func TestReplace_EmptyHistoryShowsGreeting(t *testing.T) {
	w := Replace(pinned, page("", "n0", false))
	if diff := cmp.Diff([]string{"[header]", "[greeting]"}, contents(w)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if w.NewestCursor == nil || *w.NewestCursor != "n0" {
		t.Errorf("newest cursor = %v", w.NewestCursor)
	}
}

func TestReplace_WithHistoryDropsGreeting(t *testing.T) {
	w := Replace(pinned, page("o1", "n1", true,
		sm("user", "hi", "t1"),
		sm("assistant", "hello", "t2"),
	))
	want := []string{"[header]", "user:hi", "assistant:hello"}
	if diff := cmp.Diff(want, contents(w)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if *w.OldestCursor != "o1" || *w.NewestCursor != "n1" || !w.HasMoreBefore {
		t.Errorf("pagination = %v %v %v", *w.OldestCursor, *w.NewestCursor, w.HasMoreBefore)
	}
}

func TestPrepend_InsertsBelowPinned(t *testing.T) {
	w := Replace(pinned, page("o2", "n2", true, sm("user", "c", "t3")))
	w, added := Prepend(w, page("o1", "", false, sm("user", "a", "t1"), sm("assistant", "b", "t2")))

	if added != 2 {
		t.Errorf("added = %d", added)
	}
	want := []string{"[header]", "user:a", "assistant:b", "user:c"}
	if diff := cmp.Diff(want, contents(w)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if *w.OldestCursor != "o1" || w.HasMoreBefore {
		t.Errorf("oldest = %v, more = %v", *w.OldestCursor, w.HasMoreBefore)
	}
	if *w.NewestCursor != "n2" {
		t.Errorf("newest cursor moved to %v", *w.NewestCursor)
	}
}

func TestPrepend_KeepsCursorWhenNotSupplied(t *testing.T) {
	w := Replace(pinned, page("o2", "n2", true, sm("user", "c", "t3")))
	w, _ = Prepend(w, page("", "", true))
	if w.OldestCursor == nil || *w.OldestCursor != "o2" {
		t.Errorf("oldest = %v, want o2", w.OldestCursor)
	}
}

func TestPrepend_IsMonotonic(t *testing.T) {
	w := Replace(pinned, page("c3", "n", true, sm("user", "m5", "2026-01-05"), sm("user", "m6", "2026-01-06")))
	pages := []*api.MessagesPage{
		page("c2", "", true, sm("user", "m3", "2026-01-03"), sm("user", "m4", "2026-01-04")),
		page("c1", "", true, sm("user", "m1", "2026-01-01"), sm("user", "m2", "2026-01-02")),
		page("", "", false),
	}
	last := w.OldestTimestamp()
	for i, p := range pages {
		w, _ = Prepend(w, p)
		ts := w.OldestTimestamp()
		if ts > last {
			t.Fatalf("page %d: oldest timestamp went from %s to %s", i, last, ts)
		}
		last = ts
		if w.HasMoreBefore != p.PageInfo.HasMoreBefore {
			t.Errorf("page %d: HasMoreBefore = %v", i, w.HasMoreBefore)
		}
	}
	if last != "2026-01-01" {
		t.Errorf("oldest = %s", last)
	}
	if *w.OldestCursor != "c1" {
		t.Errorf("cursor = %s, want c1 kept from last page that supplied one", *w.OldestCursor)
	}
}

func TestCatchUp_DeduplicatesByFingerprint(t *testing.T) {
	w := Replace(pinned, page("o", "n1", false, sm("user", "hi", "t1"), sm("assistant", "yo", "t2")))
	w, stats := CatchUp(w, page("", "n2", false, sm("assistant", "yo", "t2"), sm("assistant", "new", "t3")))

	want := []string{"[header]", "user:hi", "assistant:yo", "assistant:new"}
	if diff := cmp.Diff(want, contents(w)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(MergeStats{Appended: 1, Duplicates: 1}, stats); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
	if *w.NewestCursor != "n2" {
		t.Errorf("newest = %s", *w.NewestCursor)
	}
}

func TestCatchUp_IgnoresPinnedForFingerprint(t *testing.T) {
	w := Initial(pinned)
	// Same text as the greeting, but a real server message.
	w, stats := CatchUp(w, page("", "", false, sm("assistant", "Welcome", "t1")))
	if stats.Appended != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(w.Messages) != 3 {
		t.Errorf("messages = %v", contents(w))
	}
}

func TestCatchUp_ConfirmsOptimistic(t *testing.T) {
	w := Replace(pinned, page("o", "n1", false, sm("user", "earlier", "t1")))
	user := NewUserMessage("hello", false)
	reply := NewAssistantMessage("hi there")
	w = Append(w, user, reply)

	w, stats := CatchUp(w, page("", "n2", false, sm("user", "hello", "t2"), sm("assistant", "hi there", "t3")))
	if diff := cmp.Diff(MergeStats{Confirmed: 2}, stats); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
	want := []string{"[header]", "user:earlier", "user:hello", "assistant:hi there"}
	if diff := cmp.Diff(want, contents(w)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if w.Messages[2].ID != user.ID || w.Messages[2].CreatedAt != "t2" {
		t.Errorf("optimistic message not confirmed in place: %+v", w.Messages[2])
	}

	// A second identical catch-up is all duplicates.
	_, again := CatchUp(w, page("", "n2", false, sm("user", "hello", "t2"), sm("assistant", "hi there", "t3")))
	if again.Duplicates != 2 || again.Appended != 0 {
		t.Errorf("second catch-up stats = %+v", again)
	}
}

func TestCatchUp_EmptyPageAdvancesCursor(t *testing.T) {
	w := Replace(pinned, page("o", "n1", false))
	w, _ = CatchUp(w, page("", "n9", false))
	if *w.NewestCursor != "n9" {
		t.Errorf("newest = %s", *w.NewestCursor)
	}
	w, _ = CatchUp(w, page("", "", false))
	if *w.NewestCursor != "n9" {
		t.Errorf("newest without supplied cursor = %s", *w.NewestCursor)
	}
}

// Prepend and CatchUp touch disjoint regions, so either completion order
// produces the same transcript.
func TestMergesCommuteForDisjointRegions(t *testing.T) {
	base := Replace(pinned, page("o2", "n2", true, sm("user", "mid", "t5")))
	older := page("o1", "", false, sm("user", "old", "t1"))
	newer := page("", "n3", false, sm("assistant", "new", "t9"))

	a, _ := Prepend(base, older)
	a, _ = CatchUp(a, newer)

	b, _ := CatchUp(base, newer)
	b, _ = Prepend(b, older)

	opts := cmp.Options{cmpopts.IgnoreFields(Message{}, "ID")}
	if diff := cmp.Diff(a, b, opts); diff != "" {
		t.Errorf("order dependent merge (-prepend-first +catchup-first):\n%s", diff)
	}
}

func TestMergesDoNotMutateInput(t *testing.T) {
	base := Replace(pinned, page("o", "n", true, sm("user", "x", "t1")))
	before := base.Clone()
	Prepend(base, page("o0", "", false, sm("user", "w", "t0")))
	CatchUp(base, page("", "n1", false, sm("user", "y", "t2")))
	Append(base, NewAssistantMessage("z"))
	if diff := cmp.Diff(before, base); diff != "" {
		t.Errorf("input window mutated (-before +after):\n%s", diff)
	}
}

func TestMaskingNeverRevealsLength(t *testing.T) {
	for _, text := range []string{"a", "hunter2", strings.Repeat("x", 4096), "пароль", ""} {
		m := NewUserMessage(text, true)
		if m.Display != MaskToken {
			t.Errorf("display for %d-byte secret = %q", len(text), m.Display)
		}
		if m.Raw != "" {
			t.Errorf("raw content stored for secret message")
		}
		if m.Kind != KindSecret {
			t.Errorf("kind = %s", m.Kind)
		}
	}

	server := FromServer(api.ServerMessage{Role: "user", Content: "s3cr3t-value", DataInputType: api.ChatTypeSecret, CreatedAt: "t"})
	if server.Display != MaskToken || server.Raw != "" {
		t.Errorf("server secret = %+v", server)
	}
}

func TestPositions(t *testing.T) {
	tests := map[string]Position{
		api.RoleUser:      PositionRight,
		api.RoleAssistant: PositionLeft,
		api.RoleSystem:    PositionCenter,
	}
	for role, want := range tests {
		if got := FromServer(sm(role, "x", "t")).Position; got != want {
			t.Errorf("position for %s = %s, want %s", role, got, want)
		}
	}
	if Greeting("hi").Position != PositionCenter || Header("h").Position != PositionCenter {
		t.Error("pinned entries must be centered")
	}
}

func TestMessageIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewAssistantMessage("x").ID
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestPreserveScroll(t *testing.T) {
	tests := []struct {
		offset, prev, next, want int
	}{
		{0, 100, 140, 40},
		{25, 100, 100, 25},
		{10, 50, 80, 40},
		{0, 80, 50, 0},
	}
	for _, tt := range tests {
		if got := PreserveScroll(tt.offset, tt.prev, tt.next); got != tt.want {
			t.Errorf("PreserveScroll(%d, %d, %d) = %d, want %d", tt.offset, tt.prev, tt.next, got, tt.want)
		}
	}
}
