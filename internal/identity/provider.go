package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnsupported is returned by providers that cannot perform an operation.
var ErrUnsupported = errors.New("operation not supported by this auth provider")

// User is the provider's account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// AuthSession is a provider session.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token expires within leeway of now.
func (s *AuthSession) Expired(now time.Time, leeway time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.ExpiresAt)
}

// Provider is a third-party auth backend. Methods return a nil session when
// there is none.
type Provider interface {
	Load(ctx context.Context) (*AuthSession, error)
	Refresh(ctx context.Context) (*AuthSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*AuthSession, error)
	ExchangeCode(ctx context.Context, code string) (*AuthSession, error)
	SignOut(ctx context.Context) error
}

// StaticProvider serves a fixed token configured out of band.
type StaticProvider struct {
	mu      sync.Mutex
	session *AuthSession
}

// NewStaticProvider returns a provider that is signed in as user with token.
func NewStaticProvider(token, userID, email string) *StaticProvider {
	return &StaticProvider{session: &AuthSession{
		AccessToken: token,
		User:        User{ID: userID, Email: email},
	}}
}

func (p *StaticProvider) Load(context.Context) (*AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

func (p *StaticProvider) Refresh(ctx context.Context) (*AuthSession, error) {
	return p.Load(ctx)
}

func (p *StaticProvider) SignInWithPassword(context.Context, string, string) (*AuthSession, error) {
	return nil, ErrUnsupported
}

func (p *StaticProvider) SetSession(_ context.Context, accessToken, refreshToken string) (*AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var user User
	if p.session != nil {
		user = p.session.User
	}
	p.session = &AuthSession{AccessToken: accessToken, RefreshToken: refreshToken, User: user}
	return p.session, nil
}

func (p *StaticProvider) ExchangeCode(context.Context, string) (*AuthSession, error) {
	return nil, ErrUnsupported
}

func (p *StaticProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	return nil
}
