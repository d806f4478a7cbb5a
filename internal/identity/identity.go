// Package identity adapts a third-party auth provider into the normalized
// signal the chat engine consumes: loading, user id, email and access token.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/curios-os/curios/internal/tuilog"
)

// ErrUnavailable is returned by sign-in operations when no provider is configured.
var ErrUnavailable = errors.New("authentication is not configured")

// Identity is the normalized auth signal.
type Identity struct {
	Loading     bool
	UserID      string
	Email       string
	AccessToken string
}

// SignedIn reports whether a user is present.
func (i Identity) SignedIn() bool { return i.UserID != "" }

// Label is the email when known, else the user id.
func (i Identity) Label() string {
	if i.Email != "" {
		return i.Email
	}
	return i.UserID
}

func fromSession(s *AuthSession) Identity {
	if s == nil {
		return Identity{}
	}
	return Identity{UserID: s.User.ID, Email: s.User.Email, AccessToken: s.AccessToken}
}

// Adapter owns the current Identity and notifies subscribers when it
// changes. It changes only when Init completes, on sign-in, sign-out,
// token refresh and when a redirect is handled.
type Adapter struct {
	provider Provider

	mu      sync.Mutex
	current Identity
	subs    map[int]chan Identity
	nextSub int

	redirectGuard onceGuard
}

// NewAdapter creates an Adapter. A nil provider means auth is unavailable:
// the identity is signed out and not loading.
func NewAdapter(p Provider) *Adapter {
	return &Adapter{
		provider: p,
		current:  Identity{Loading: p != nil},
		subs:     make(map[int]chan Identity),
	}
}

// Available reports whether a provider is configured.
func (a *Adapter) Available() bool { return a.provider != nil }

// Current returns the identity as of now.
func (a *Adapter) Current() Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Subscribe returns a channel that always holds the latest identity after
// a change. Intermediate values may be skipped. Call cancel to unsubscribe.
func (a *Adapter) Subscribe() (<-chan Identity, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	ch := make(chan Identity, 1)
	a.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
		})
	}
}

func (a *Adapter) publish(next Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if next == a.current {
		return
	}
	a.current = next
	for _, ch := range a.subs {
		select {
		case ch <- next:
		default:
			// Replace the undelivered value with the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}

// Init restores the provider session. Provider errors are logged and yield
// the signed-out identity.
func (a *Adapter) Init(ctx context.Context) {
	if a.provider == nil {
		a.publish(Identity{})
		return
	}
	s, err := a.provider.Load(ctx)
	if err != nil {
		tuilog.Log.Warn("Auth initialization failed", "error", err)
		a.publish(Identity{})
		return
	}
	a.publish(fromSession(s))
}

// SignIn signs in with email and password.
func (a *Adapter) SignIn(ctx context.Context, email, password string) (Identity, error) {
	if a.provider == nil {
		return Identity{}, ErrUnavailable
	}
	s, err := a.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return a.Current(), err
	}
	id := fromSession(s)
	a.publish(id)
	return id, nil
}

// SignOut ends the provider session. The local identity is cleared even if
// the provider call fails.
func (a *Adapter) SignOut(ctx context.Context) error {
	if a.provider == nil {
		return nil
	}
	err := a.provider.SignOut(ctx)
	a.publish(Identity{})
	return err
}

// Refresh exchanges the refresh token for a new access token.
func (a *Adapter) Refresh(ctx context.Context) error {
	if a.provider == nil {
		return ErrUnavailable
	}
	s, err := a.provider.Refresh(ctx)
	if err != nil {
		return err
	}
	a.publish(fromSession(s))
	return nil
}

// onceGuard is a resettable run-once flag.
type onceGuard struct {
	mu   sync.Mutex
	done bool
}

// claim returns true exactly once until reset.
func (g *onceGuard) claim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	g.done = true
	return true
}

func (g *onceGuard) reset() {
	g.mu.Lock()
	g.done = false
	g.mu.Unlock()
}
