package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/devserver"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/storage"
)

func TestSend_RejectsEmptyAndLoading(t *testing.T) {
	e, _ := newEngine(t, engineOptions{backend: newFakeBackend()})

	if err := e.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank: %v", err)
	}
	e.update(func(s *State) Change {
		s.SessionLoading = true
		return ChangeStatus
	})
	if err := e.Send(context.Background(), "hi"); !errors.Is(err, ErrSessionLoading) {
		t.Errorf("loading: %v", err)
	}
}

func TestSend_AppendsReplyAndSendsContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := newFakeBackend()
	e, _ := newEngine(t, engineOptions{backend: fb})
	defer e.Close()

	if err := e.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	s := e.Snapshot()
	got := unpinnedContents(s)
	if len(got) != 2 || got[0] != "hello" || got[1] != "echo: hello" {
		t.Errorf("transcript = %v", got)
	}
	if s.Sending {
		t.Error("Sending still set")
	}
	if ctx := fb.chatMetas[0].Context; ctx != DefaultContext {
		t.Errorf("context header = %q", ctx)
	}
}

func TestSend_FailureAppendsNotice(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := &api.StatusError{Code: 502, Body: "bad gateway"}
	fb := newFakeBackend()
	fb.chat = func(context.Context, api.RequestMeta, string) (*api.ChatReply, error) { return nil, boom }
	e, _ := newEngine(t, engineOptions{backend: fb})
	defer e.Close()

	if err := e.Send(context.Background(), "hello"); !errors.Is(err, boom) {
		t.Fatalf("Send = %v", err)
	}
	msgs := e.Snapshot().Window.Unpinned()
	if len(msgs) != 2 {
		t.Fatalf("transcript = %+v", msgs)
	}
	last := msgs[1]
	if last.Role != api.RoleAssistant || last.Content() != DefaultTexts().ErrorNotice(boom) {
		t.Errorf("notice = %+v", last)
	}
	if !msgs[0].Optimistic() {
		t.Error("failed user message should stay unconfirmed")
	}
}

func TestSend_AbortAddsNoNotice(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := newFakeBackend()
	started := make(chan struct{})
	fb.chat = func(ctx context.Context, _ api.RequestMeta, _ string) (*api.ChatReply, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	e, _ := newEngine(t, engineOptions{backend: fb})
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Send(ctx, "hello") }()
	<-started
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Send = %v", err)
	}
	if got := unpinnedContents(e.Snapshot()); len(got) != 1 {
		t.Errorf("transcript after abort = %v", got)
	}
}

func TestSend_SingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := newFakeBackend()
	started := make(chan struct{})
	release := make(chan struct{})
	fb.chat = func(_ context.Context, meta api.RequestMeta, msg string) (*api.ChatReply, error) {
		close(started)
		<-release
		return &api.ChatReply{SessionID: meta.SessionID, State: InitialState, Reply: "ok"}, nil
	}
	e, _ := newEngine(t, engineOptions{backend: fb})
	defer e.Close()

	errc := make(chan error, 1)
	go func() { errc <- e.Send(context.Background(), "first") }()
	<-started

	if err := e.Send(context.Background(), "second"); !errors.Is(err, ErrSendInFlight) {
		t.Errorf("second Send = %v", err)
	}
	if !e.Snapshot().Sending {
		t.Error("Sending not set while in flight")
	}
	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("first Send: %v", err)
	}
}

func TestSend_RotatedSessionAdopted(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := newFakeBackend()
	fb.chat = func(context.Context, api.RequestMeta, string) (*api.ChatReply, error) {
		return &api.ChatReply{SessionID: "new-id", State: InitialState, Reply: "ok"}, nil
	}
	e, sessions := newEngine(t, engineOptions{backend: fb})
	defer e.Close()

	if err := e.Send(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if e.Snapshot().SessionID != "new-id" || sessions.Get() != "new-id" {
		t.Errorf("session id = %q / %q", e.Snapshot().SessionID, sessions.Get())
	}
}

func TestSend_ReplyKeptAcrossConcurrentRotation(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := newFakeBackend()
	started := make(chan struct{})
	release := make(chan struct{})
	fb.chat = func(_ context.Context, meta api.RequestMeta, _ string) (*api.ChatReply, error) {
		close(started)
		<-release
		return &api.ChatReply{SessionID: meta.SessionID, State: InitialState, Reply: "ok"}, nil
	}
	fb.session = func(context.Context, api.RequestMeta) (*api.Session, error) {
		return &api.Session{OK: true, SessionID: "rotated", State: InitialState}, nil
	}
	e, sessions := newEngine(t, engineOptions{backend: fb})
	defer e.Close()

	errc := make(chan error, 1)
	go func() { errc <- e.Send(context.Background(), "hi") }()
	<-started

	e.RefreshSession(context.Background(), "test", false)
	if id := e.Snapshot().SessionID; id != "rotated" {
		t.Fatalf("session id after refresh = %q", id)
	}
	close(release)

	if err := <-errc; err != nil {
		t.Fatalf("Send: %v", err)
	}
	s := e.Snapshot()
	if got := unpinnedContents(s); len(got) != 2 || got[0] != "hi" || got[1] != "ok" {
		t.Errorf("transcript = %v", got)
	}
	if s.SessionID != "rotated" || sessions.Get() != "rotated" {
		t.Errorf("session id = %q / %q, want rotated", s.SessionID, sessions.Get())
	}
}

func TestSend_ReplyDroppedAfterExternalSwitch(t *testing.T) {
	defer goleak.VerifyNone(t)

	fb := newFakeBackend()
	started := make(chan struct{})
	release := make(chan struct{})
	fb.chat = func(_ context.Context, meta api.RequestMeta, _ string) (*api.ChatReply, error) {
		close(started)
		<-release
		return &api.ChatReply{SessionID: meta.SessionID, State: InitialState, Reply: "ok"}, nil
	}
	mem := storage.NewMemory()
	e, _ := newEngine(t, engineOptions{backend: fb, store: mem})
	defer e.Close()
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- e.Send(context.Background(), "hi") }()
	<-started

	mem.SetExternal(storage.KeySessionID, "from-another-process")
	waitFor(t, "adopted session", func() bool {
		return e.Snapshot().SessionID == "from-another-process"
	})
	close(release)

	if err := <-errc; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := unpinnedContents(e.Snapshot()); len(got) != 0 {
		t.Errorf("transcript after switch = %v", got)
	}
}

func TestSend_MasksSecretTurn(t *testing.T) {
	_, client := newDevBackend(t, devserver.Config{})
	e, _ := newEngine(t, engineOptions{backend: client})
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, msg := range []string{"sign in", "ada@example.com"} {
		if err := e.Send(context.Background(), msg); err != nil {
			t.Fatalf("Send %q: %v", msg, err)
		}
	}
	if !e.Snapshot().Masking {
		t.Fatal("masking not enabled after the email step")
	}

	const password = "correct horse battery staple"
	if err := e.Send(context.Background(), password); err != nil {
		t.Fatal(err)
	}

	s := e.Snapshot()
	if s.Masking {
		t.Error("masking still on after the password step")
	}
	var secrets int
	for _, m := range s.Window.Messages {
		if strings.Contains(m.Content(), password) || strings.Contains(m.Display, password) {
			t.Fatalf("password visible in %+v", m)
		}
		if m.Kind == history.KindSecret {
			secrets++
			if m.Display != history.MaskToken {
				t.Errorf("secret display = %q", m.Display)
			}
			if m.Optimistic() {
				t.Error("secret message not confirmed by catch-up")
			}
		}
	}
	if secrets != 1 {
		t.Errorf("secret messages = %d, want 1", secrets)
	}
}

func TestSend_StateTransitionResyncs(t *testing.T) {
	_, client := newDevBackend(t, devserver.Config{})
	backend := &countingBackend{Backend: client}
	e, _ := newEngine(t, engineOptions{backend: backend})
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := backend.sessionCalls()

	if err := e.Send(context.Background(), "sign in"); err != nil {
		t.Fatal(err)
	}
	if got := e.Snapshot().State; got != devserver.StateAwaitingEmail {
		t.Fatalf("State = %q", got)
	}
	waitFor(t, "resync", func() bool { return backend.sessionCalls() > before })
}

func TestSend_CatchUpConfirmsWithoutDuplicates(t *testing.T) {
	_, client := newDevBackend(t, devserver.Config{})
	e, _ := newEngine(t, engineOptions{backend: client})
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, msg := range []string{"one", "two"} {
		if err := e.Send(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
	}
	e.CatchUp(context.Background())

	s := e.Snapshot()
	msgs := s.Window.Unpinned()
	if len(msgs) != 4 {
		t.Fatalf("transcript = %v", unpinnedContents(s))
	}
	for _, m := range msgs {
		if m.Optimistic() {
			t.Errorf("unconfirmed message %q", m.Content())
		}
	}
}
