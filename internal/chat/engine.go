// Package chat is the session and history synchronization engine behind
// the chat screen. An Engine owns one conversation: the session fields, the
// transcript window and its cursors. Every mutation goes through a single
// mutex-guarded update, and network I/O happens outside the lock.
package chat

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/i18n"
	"github.com/curios-os/curios/internal/identity"
	"github.com/curios-os/curios/internal/tuilog"
)

// InitialState is the conversation state before the backend reports one.
const InitialState = "WELCOME"

// Backend is the subset of *api.Client the engine uses.
type Backend interface {
	GetSession(ctx context.Context, meta api.RequestMeta) (*api.Session, error)
	DeleteSession(ctx context.Context, meta api.RequestMeta) error
	Chat(ctx context.Context, meta api.RequestMeta, message string) (*api.ChatReply, error)
	Messages(ctx context.Context, meta api.RequestMeta, q api.PageQuery) (*api.MessagesPage, error)
}

// IdentitySource is the subset of *identity.Adapter the engine uses.
type IdentitySource interface {
	Current() identity.Identity
	Subscribe() (<-chan identity.Identity, func())
}

// SessionStore is the subset of *session.Store the engine uses.
type SessionStore interface {
	Get() string
	Set(id string) error
	Reset() (string, error)
	Watch(ctx context.Context) (<-chan string, error)
}

// Texts are the user-facing strings the engine writes into the transcript.
type Texts struct {
	Title    string
	Greeting string
	// ErrorNotice formats a backend failure for display.
	ErrorNotice func(err error) string
}

// DefaultTexts returns the strings for the active locale.
func DefaultTexts() Texts {
	return Texts{
		Title:    i18n.T("chat.title", "CuriOS"),
		Greeting: i18n.T("chat.greeting", "Welcome to CuriOS. Do you want to create an account, sign in or continue as a guest?"),
		ErrorNotice: func(err error) string {
			return i18n.Tf("chat.error.backend",
				"There was an error communicating with the backend. Make sure it is running and the address is correct.\n\nDetails: %v", err)
		},
	}
}

func (t Texts) pinned() history.Pinned {
	return history.Pinned{Title: t.Title, Greeting: t.Greeting}
}

// Options configures an Engine.
type Options struct {
	Backend  Backend
	Identity IdentitySource // nil means always signed out
	Sessions SessionStore
	Context  string // initial active context; defaults to "system"
	Retry    RetryPolicy
	Texts    Texts
	PageSize int
}

// State is a snapshot of the engine.
type State struct {
	SessionID          string
	State              string
	ProviderConfigured bool
	SelectedProvider   string
	Masking            bool
	User               *api.User

	SessionLoading bool
	SessionSynced  bool
	Sending        bool
	LoadingOlder   bool

	Error        string
	HistoryError string

	ActiveContext string
	Window        history.Window

	// epoch counts local session replacements (reset, another process
	// switching the id). Responses to requests from an older epoch are
	// dropped. A rotation announced by the backend keeps the epoch.
	epoch uint64
}

// replaceSession switches to id and invalidates in-flight responses.
func (s *State) replaceSession(id string) {
	s.SessionID = id
	s.epoch++
}

// LoggedIn decides whether the user is signed in. Until the first session
// sync completes the provider identity is used; afterwards only the user
// the backend resolved counts.
func (s State) LoggedIn(id identity.Identity) bool {
	if s.SessionSynced {
		return s.User != nil
	}
	return id.SignedIn()
}

func (s State) clone() State {
	out := s
	out.Window = s.Window.Clone()
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}

// Change says what an update touched.
type Change int

const (
	ChangeNone Change = iota
	ChangeSession
	ChangeReplaced
	ChangePrepended
	ChangeAppended
	ChangeReset
	ChangeStatus
)

func (c Change) String() string {
	switch c {
	case ChangeSession:
		return "session"
	case ChangeReplaced:
		return "replaced"
	case ChangePrepended:
		return "prepended"
	case ChangeAppended:
		return "appended"
	case ChangeReset:
		return "reset"
	case ChangeStatus:
		return "status"
	default:
		return "none"
	}
}

// Event is published after every state change.
type Event struct {
	Change Change
	State  State
}

// Engine runs one conversation.
type Engine struct {
	backend  Backend
	ident    IdentitySource
	sessions SessionStore
	retry    RetryPolicy
	texts    Texts
	pageSize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	closed  bool
	subs    map[int]chan Event
	nextSub int

	olderSem *semaphore.Weighted
	sendSem  *semaphore.Weighted

	retryMu     sync.Mutex
	retryCancel context.CancelFunc
}

// New creates an Engine. Nothing happens on the network until Start.
func New(opts Options) *Engine {
	if opts.Texts.ErrorNotice == nil {
		def := DefaultTexts()
		if opts.Texts.Title == "" {
			opts.Texts.Title = def.Title
		}
		if opts.Texts.Greeting == "" {
			opts.Texts.Greeting = def.Greeting
		}
		opts.Texts.ErrorNotice = def.ErrorNotice
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = api.DefaultPageSize
	}
	if opts.Context == "" {
		opts.Context = DefaultContext
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		backend:  opts.Backend,
		ident:    opts.Identity,
		sessions: opts.Sessions,
		retry:    opts.Retry,
		texts:    opts.Texts,
		pageSize: opts.PageSize,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[int]chan Event),
		olderSem: semaphore.NewWeighted(1),
		sendSem:  semaphore.NewWeighted(1),
	}
	e.state = State{
		SessionID:     opts.Sessions.Get(),
		State:         InitialState,
		ActiveContext: opts.Context,
		Window:        history.Initial(opts.Texts.pinned()),
	}
	return e
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Identity returns the provider identity, or the zero identity when none
// is configured.
func (e *Engine) Identity() identity.Identity {
	if e.ident == nil {
		return identity.Identity{}
	}
	return e.ident.Current()
}

// LoggedIn applies State.LoggedIn to the current snapshot and identity.
func (e *Engine) LoggedIn() bool {
	return e.Snapshot().LoggedIn(e.Identity())
}

// Subscribe returns a channel of state events. Slow subscribers miss
// events rather than block the engine; each event carries a full snapshot.
// The channel is closed by Close or by the returned cancel func.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Event, 64)
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

// update applies fn under the lock and publishes the result. It is a no-op
// once the engine is closed.
func (e *Engine) update(fn func(s *State) Change) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	change := fn(&e.state)
	if change == ChangeNone {
		return
	}
	ev := Event{Change: change, State: e.state.clone()}
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			tuilog.Log.Debug("Dropping engine event for slow subscriber", "change", change.String())
		}
	}
}

// meta builds the request headers from the current session and identity.
func (e *Engine) meta() api.RequestMeta {
	m, _ := e.request()
	return m
}

// request is meta plus the session epoch the request belongs to.
func (e *Engine) request() (api.RequestMeta, uint64) {
	id := e.Identity()
	e.mu.Lock()
	defer e.mu.Unlock()

	hint := e.state.User.Label()
	if hint == "" {
		hint = id.Label()
	}
	return api.RequestMeta{
		SessionID:   e.state.SessionID,
		UserHint:    hint,
		AccessToken: id.AccessToken,
	}, e.state.epoch
}

// adoptRotation applies a session id from a response to a request sent
// with sent. It reports whether the id changed. An id equal to the one
// sent is not a rotation, even if another response rotated meanwhile.
func adoptRotation(s *State, sent, got string) bool {
	if got == "" || got == sent || got == s.SessionID {
		return false
	}
	s.SessionID = got
	return true
}

// spawn runs fn in the background unless the engine is closed. Close waits
// for spawned work.
func (e *Engine) spawn(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
	return true
}

// bind derives a context that is also cancelled when the engine closes.
func (e *Engine) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// aborted reports whether err comes from ctx being cancelled, as opposed
// to a real failure. Aborts are never surfaced.
func aborted(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled)
}

// persistRotation stores a session id the backend replaced.
func (e *Engine) persistRotation(old, id string) {
	if err := e.sessions.Set(id); err != nil {
		tuilog.Log.Warn("Persisting rotated session id failed", "error", err)
	}
	sessionRotations.Inc()
	tuilog.Log.Info("Session rotated by backend", "old", old, "new", id)
}

// Start runs the bootstrap (session refresh with the busy indicator, then
// the initial history page) and starts watching identity and session-id
// changes. The watchers stop on Close.
func (e *Engine) Start(ctx context.Context) error {
	e.watchIdentity()
	e.watchSessionID()
	return e.bootstrap(ctx)
}

func (e *Engine) bootstrap(ctx context.Context) error {
	e.RefreshSession(ctx, "bootstrap", true)
	return e.LoadInitial(ctx)
}

func (e *Engine) watchIdentity() {
	if e.ident == nil {
		return
	}
	changes, unsubscribe := e.ident.Subscribe()
	last := e.ident.Current().AccessToken

	started := e.spawn(func() {
		defer unsubscribe()
		for {
			select {
			case <-e.ctx.Done():
				return
			case id := <-changes:
				if id.Loading || id.AccessToken == last {
					continue
				}
				signedOut := id.AccessToken == ""
				last = id.AccessToken
				reason := "identity changed"
				if signedOut {
					reason = "signed out"
				}
				e.SyncAfterIdentityChange(signedOut, reason)
			}
		}
	})
	if !started {
		unsubscribe()
	}
}

func (e *Engine) watchSessionID() {
	ids, err := e.sessions.Watch(e.ctx)
	if err != nil {
		tuilog.Log.Warn("Cannot watch session id", "error", err)
		return
	}
	if ids == nil {
		return
	}

	e.spawn(func() {
		for id := range ids {
			e.adoptExternalSession(id)
		}
	})
}

// adoptExternalSession switches to a session id written by another process
// and reloads everything for it.
func (e *Engine) adoptExternalSession(id string) {
	var changed bool
	e.update(func(s *State) Change {
		if s.SessionID == id {
			return ChangeNone
		}
		changed = true
		s.replaceSession(id)
		s.Window = history.Initial(e.texts.pinned())
		s.LoadingOlder = false
		return ChangeReset
	})
	if !changed {
		return
	}
	e.cancelRetry()
	if err := e.bootstrap(e.ctx); err != nil && e.ctx.Err() == nil {
		tuilog.Log.Debug("Reload after external session change failed", "error", err)
	}
}

// Close cancels in-flight requests and pending retries, closes subscriber
// channels and waits for background work. Later completions are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	e.mu.Unlock()

	e.cancel()
	e.cancelRetry()
	e.wg.Wait()
}
