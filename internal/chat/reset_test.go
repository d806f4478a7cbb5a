package chat

import (
	"context"
	"testing"

	"go.uber.org/goleak"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/devserver"
)

func TestResetSession_StartsOver(t *testing.T) {
	srv, client := newDevBackend(t, devserver.Config{})
	e, sessions := newEngine(t, engineOptions{backend: client})
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, msg := range []string{"guest", "openai"} {
		if err := e.Send(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
	}
	old := e.Snapshot()
	if old.State != devserver.StateReady || !old.ProviderConfigured {
		t.Fatalf("before reset: state %q provider %v", old.State, old.ProviderConfigured)
	}

	if err := e.ResetSession(context.Background()); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}

	s := e.Snapshot()
	if s.SessionID == old.SessionID || s.SessionID != sessions.Get() {
		t.Errorf("session id %q (old %q, stored %q)", s.SessionID, old.SessionID, sessions.Get())
	}
	if s.State != InitialState || s.ProviderConfigured || s.SelectedProvider != "" || s.User != nil {
		t.Errorf("session fields not reset: %+v", s)
	}
	if len(s.Window.Unpinned()) != 0 || len(s.Window.Messages) != 2 {
		t.Errorf("window after reset = %v", unpinnedContents(s))
	}
	if !s.SessionSynced || s.SessionLoading {
		t.Errorf("bootstrap did not complete: synced %v loading %v", s.SessionSynced, s.SessionLoading)
	}
	// The old session was dropped and the new one created by the bootstrap.
	if n := srv.SessionCount(); n != 1 {
		t.Errorf("backend sessions = %d, want 1", n)
	}
}

// assertFreshWindow checks that nothing from the old session survived.
func assertFreshWindow(t *testing.T, s State) {
	t.Helper()
	if got := unpinnedContents(s); len(got) != 0 || len(s.Window.Messages) != 2 {
		t.Errorf("window after reset = %v", got)
	}
	if s.Window.HasMoreBefore || s.Window.OldestCursor != nil || s.Window.NewestCursor != nil {
		t.Errorf("cursors after reset: more %v oldest %v newest %v", s.Window.HasMoreBefore, s.Window.OldestCursor, s.Window.NewestCursor)
	}
	if s.LoadingOlder || s.HistoryError != "" {
		t.Errorf("loading %v history error %q", s.LoadingOlder, s.HistoryError)
	}
}

func TestResetSession_DropsOlderPageInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := newFakeBackend()
	e, _ := newEngine(t, engineOptions{backend: fb})
	defer e.Close()
	old := e.Snapshot().SessionID

	started := make(chan struct{})
	release := make(chan struct{})
	fb.mu.Lock()
	fb.messages = func(_ context.Context, meta api.RequestMeta, q api.PageQuery) (*api.MessagesPage, error) {
		switch {
		case meta.SessionID != old:
			return &api.MessagesPage{}, nil
		case q.Before != "":
			close(started)
			<-release
			return &api.MessagesPage{
				Messages: []api.ServerMessage{{Role: api.RoleUser, Content: "old", CreatedAt: "2026-01-01T00:00:01Z"}},
				PageInfo: api.PageInfo{OldestCursor: ptr("c1"), NewestCursor: ptr("c1"), HasMoreBefore: true},
			}, nil
		default:
			return &api.MessagesPage{
				Messages: []api.ServerMessage{{Role: api.RoleUser, Content: "new", CreatedAt: "2026-01-01T00:00:10Z"}},
				PageInfo: api.PageInfo{OldestCursor: ptr("c10"), NewestCursor: ptr("c10"), HasMoreBefore: true},
			}, nil
		}
	}
	fb.mu.Unlock()

	if err := e.LoadInitial(context.Background()); err != nil {
		t.Fatal(err)
	}

	type result struct {
		loaded bool
		err    error
	}
	done := make(chan result, 1)
	go func() {
		loaded, err := e.LoadOlder(context.Background())
		done <- result{loaded, err}
	}()
	<-started

	if err := e.ResetSession(context.Background()); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	if e.Snapshot().LoadingOlder {
		t.Error("LoadingOlder survived the reset")
	}
	close(release)

	r := <-done
	if r.loaded || r.err != nil {
		t.Errorf("LoadOlder after reset = %v, %v", r.loaded, r.err)
	}
	assertFreshWindow(t, e.Snapshot())
}

func TestResetSession_DropsPagesInFlight(t *testing.T) {
	tests := []struct {
		name string
		load func(e *Engine) error
	}{
		{"initial", func(e *Engine) error { return e.LoadInitial(context.Background()) }},
		{"catch-up", func(e *Engine) error { e.CatchUp(context.Background()); return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			fb := newFakeBackend()
			e, _ := newEngine(t, engineOptions{backend: fb})
			defer e.Close()
			old := e.Snapshot().SessionID

			started := make(chan struct{})
			release := make(chan struct{})
			fb.mu.Lock()
			fb.messages = func(_ context.Context, meta api.RequestMeta, _ api.PageQuery) (*api.MessagesPage, error) {
				if meta.SessionID != old {
					return &api.MessagesPage{}, nil
				}
				close(started)
				<-release
				return &api.MessagesPage{
					Messages: []api.ServerMessage{{Role: api.RoleAssistant, Content: "late", CreatedAt: "2026-01-01T00:00:05Z"}},
					PageInfo: api.PageInfo{OldestCursor: ptr("c5"), NewestCursor: ptr("c5"), HasMoreBefore: true},
				}, nil
			}
			fb.mu.Unlock()

			errc := make(chan error, 1)
			go func() { errc <- tt.load(e) }()
			<-started

			if err := e.ResetSession(context.Background()); err != nil {
				t.Fatalf("ResetSession: %v", err)
			}
			close(release)
			if err := <-errc; err != nil {
				t.Errorf("load after reset = %v", err)
			}
			assertFreshWindow(t, e.Snapshot())
		})
	}
}
