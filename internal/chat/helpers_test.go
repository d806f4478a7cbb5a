package chat

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/devserver"
	"github.com/curios-os/curios/internal/identity"
	"github.com/curios-os/curios/internal/session"
	"github.com/curios-os/curios/internal/storage"
)

// fakeBackend answers from hooks and records what it was asked.
type fakeBackend struct {
	mu       sync.Mutex
	session  func(ctx context.Context, meta api.RequestMeta) (*api.Session, error)
	chat     func(ctx context.Context, meta api.RequestMeta, msg string) (*api.ChatReply, error)
	messages func(ctx context.Context, meta api.RequestMeta, q api.PageQuery) (*api.MessagesPage, error)

	sessionMetas []api.RequestMeta
	chatMetas    []api.RequestMeta
	queries      []api.PageQuery
	deletes      int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		session: func(_ context.Context, meta api.RequestMeta) (*api.Session, error) {
			return &api.Session{OK: true, SessionID: meta.SessionID, State: InitialState, ChatType: api.ChatTypeText}, nil
		},
		chat: func(_ context.Context, meta api.RequestMeta, msg string) (*api.ChatReply, error) {
			return &api.ChatReply{SessionID: meta.SessionID, State: InitialState, ChatType: api.ChatTypeText, Reply: "echo: " + msg}, nil
		},
		messages: func(context.Context, api.RequestMeta, api.PageQuery) (*api.MessagesPage, error) {
			return &api.MessagesPage{}, nil
		},
	}
}

func (f *fakeBackend) GetSession(ctx context.Context, meta api.RequestMeta) (*api.Session, error) {
	f.mu.Lock()
	f.sessionMetas = append(f.sessionMetas, meta)
	fn := f.session
	f.mu.Unlock()
	return fn(ctx, meta)
}

func (f *fakeBackend) DeleteSession(ctx context.Context, meta api.RequestMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return nil
}

func (f *fakeBackend) Chat(ctx context.Context, meta api.RequestMeta, msg string) (*api.ChatReply, error) {
	f.mu.Lock()
	f.chatMetas = append(f.chatMetas, meta)
	fn := f.chat
	f.mu.Unlock()
	return fn(ctx, meta, msg)
}

func (f *fakeBackend) Messages(ctx context.Context, meta api.RequestMeta, q api.PageQuery) (*api.MessagesPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fn := f.messages
	f.mu.Unlock()
	return fn(ctx, meta, q)
}

func (f *fakeBackend) sessionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessionMetas)
}

// countingBackend wraps a real client and counts session lookups.
type countingBackend struct {
	Backend
	mu    sync.Mutex
	calls int
}

func (c *countingBackend) GetSession(ctx context.Context, meta api.RequestMeta) (*api.Session, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Backend.GetSession(ctx, meta)
}

func (c *countingBackend) sessionCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeIdentity is an IdentitySource the test drives directly.
type fakeIdentity struct {
	mu  sync.Mutex
	cur identity.Identity
	ch  chan identity.Identity
}

func newFakeIdentity(id identity.Identity) *fakeIdentity {
	return &fakeIdentity{cur: id, ch: make(chan identity.Identity, 1)}
}

func (f *fakeIdentity) Current() identity.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

func (f *fakeIdentity) Subscribe() (<-chan identity.Identity, func()) {
	return f.ch, func() {}
}

func (f *fakeIdentity) set(id identity.Identity) {
	f.mu.Lock()
	f.cur = id
	f.mu.Unlock()
	select {
	case <-f.ch:
	default:
	}
	f.ch <- id
}

func signedIn(token string) identity.Identity {
	return identity.Identity{UserID: "u-" + token, Email: token + "@example.com", AccessToken: token}
}

func fastRetry() RetryPolicy {
	return RetryPolicy{Initial: time.Millisecond, Factor: 1.5, Max: 5 * time.Millisecond, Attempts: 5}
}

type engineOptions struct {
	backend  Backend
	ident    IdentitySource
	store    storage.Storage
	pageSize int
}

func newEngine(t *testing.T, o engineOptions) (*Engine, *session.Store) {
	t.Helper()
	if o.store == nil {
		o.store = storage.NewMemory()
	}
	sessions := session.NewStore(o.store)
	e := New(Options{
		Backend:  o.backend,
		Identity: o.ident,
		Sessions: sessions,
		Retry:    fastRetry(),
		PageSize: o.pageSize,
	})
	t.Cleanup(e.Close)
	return e, sessions
}

func newDevBackend(t *testing.T, cfg devserver.Config) (*devserver.Server, *api.Client) {
	t.Helper()
	cfg.Quiet = true
	srv := devserver.New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, api.NewClient(ts.URL, 5*time.Second)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func unpinnedContents(s State) []string {
	var out []string
	for _, m := range s.Window.Unpinned() {
		out = append(out, m.Content())
	}
	return out
}

func ptr(s string) *string { return &s }
