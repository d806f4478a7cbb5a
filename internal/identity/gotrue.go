package identity

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/curios-os/curios/internal/storage"
	"github.com/curios-os/curios/internal/tuilog"
)

// refreshLeeway refreshes tokens this long before they expire.
const refreshLeeway = time.Minute

// GoTrueProvider talks to a Supabase-compatible auth server and persists the
// session in storage under storage.KeyAuth.
type GoTrueProvider struct {
	baseURL string // project URL, without /auth/v1
	anonKey string
	store   storage.Storage
	hc      http.Client
	client  gotrue.Client
	now     func() time.Time

	mu sync.Mutex
}

// NewGoTrueProvider creates a provider for the project at baseURL.
func NewGoTrueProvider(baseURL, anonKey string, store storage.Storage) *GoTrueProvider {
	base := strings.TrimRight(baseURL, "/")
	hc := http.Client{Timeout: 30 * time.Second}
	return &GoTrueProvider{
		baseURL: base,
		anonKey: anonKey,
		store:   store,
		hc:      hc,
		client:  gotrue.New("", anonKey).WithCustomGoTrueURL(base + "/auth/v1").WithClient(hc),
		now:     time.Now,
	}
}

// errorResponse covers the error shapes GoTrue returns.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// AuthError is a non-2xx response from the auth server.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth server returned %d: %s", e.Status, e.Message)
}

const statusPrefix = "response status code "

// authError turns the gotrue client's "response status code N: body" errors
// into an *AuthError. Other errors are returned unchanged.
func authError(err error) error {
	if err == nil {
		return nil
	}
	rest, ok := strings.CutPrefix(err.Error(), statusPrefix)
	if !ok {
		return err
	}
	code, body, _ := strings.Cut(rest, ": ")
	status, convErr := strconv.Atoi(code)
	if convErr != nil {
		return err
	}
	return &AuthError{Status: status, Message: errorMessage([]byte(body))}
}

func errorMessage(raw []byte) string {
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil {
		for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// call runs a blocking gotrue client call, returning early when ctx ends.
// The client has no context support; its own timeout bounds the abandoned call.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, authError(err)}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *GoTrueProvider) session(s types.Session) (*AuthSession, error) {
	if s.AccessToken == "" {
		return nil, fmt.Errorf("auth server returned no access token")
	}
	out := &AuthSession{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, User: userFrom(s.User)}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		out.ExpiresAt = p.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out, nil
}

func userFrom(u types.User) User {
	var id string
	if u.ID != uuid.Nil {
		id = u.ID.String()
	}
	return User{ID: id, Email: u.Email}
}

func (p *GoTrueProvider) token(ctx context.Context, req types.TokenRequest) (*AuthSession, error) {
	resp, err := call(ctx, func() (*types.TokenResponse, error) { return p.client.Token(req) })
	if err != nil {
		return nil, err
	}
	return p.session(resp.Session)
}

func (p *GoTrueProvider) loadStored() (*AuthSession, error) {
	raw, ok, err := p.store.Get(storage.KeyAuth)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var s AuthSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		// A corrupt entry is treated as signed out.
		tuilog.Log.Warn("Discarding unreadable auth session", "error", err)
		_ = p.store.Delete(storage.KeyAuth)
		return nil, nil
	}
	return &s, nil
}

func (p *GoTrueProvider) persist(s *AuthSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal auth session: %w", err)
	}
	return p.store.Set(storage.KeyAuth, string(data))
}

// Load restores the stored session, refreshing it if it has expired.
func (p *GoTrueProvider) Load(ctx context.Context) (*AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.loadStored()
	if err != nil || s == nil {
		return nil, err
	}
	if !s.Expired(p.now(), refreshLeeway) {
		return s, nil
	}
	tuilog.Log.Debug("Stored auth session expired, refreshing", "user", s.User.ID)
	return p.refreshLocked(ctx, s)
}

// Refresh exchanges the stored refresh token for a new session.
func (p *GoTrueProvider) Refresh(ctx context.Context) (*AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.loadStored()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	return p.refreshLocked(ctx, s)
}

func (p *GoTrueProvider) refreshLocked(ctx context.Context, s *AuthSession) (*AuthSession, error) {
	if s.RefreshToken == "" {
		_ = p.store.Delete(storage.KeyAuth)
		return nil, errors.New("auth session expired and has no refresh token")
	}
	next, err := p.token(ctx, types.TokenRequest{GrantType: "refresh_token", RefreshToken: s.RefreshToken})
	if err != nil {
		var ae *AuthError
		if errors.As(err, &ae) && ae.Status < 500 {
			// The refresh token was rejected; the session is gone.
			_ = p.store.Delete(storage.KeyAuth)
		}
		return nil, fmt.Errorf("refresh auth session: %w", err)
	}
	if next.User.ID == "" {
		next.User = s.User
	}
	return next, p.persist(next)
}

// SignInWithPassword signs in with email and password.
func (p *GoTrueProvider) SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.token(ctx, types.TokenRequest{GrantType: "password", Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return s, p.persist(s)
}

// SetSession adopts tokens delivered by an implicit-flow redirect. The
// user is resolved from the access token.
func (p *GoTrueProvider) SetSession(ctx context.Context, accessToken, refreshToken string) (*AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp, err := call(ctx, func() (*types.UserResponse, error) {
		return p.client.WithToken(accessToken).GetUser()
	})
	var ae *AuthError
	if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized && refreshToken != "" {
		return p.refreshLocked(ctx, &AuthSession{RefreshToken: refreshToken})
	}
	if err != nil {
		return nil, err
	}
	s := &AuthSession{AccessToken: accessToken, RefreshToken: refreshToken, User: userFrom(resp.User)}
	return s, p.persist(s)
}

// ExchangeCode completes a PKCE flow started by AuthorizeURL.
func (p *GoTrueProvider) ExchangeCode(ctx context.Context, code string) (*AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	verifier, ok, err := p.store.Get(storage.KeyAuthVerifier)
	if err != nil {
		return nil, err
	}
	if !ok || verifier == "" {
		return nil, errors.New("no pending sign-in: start one with an authorize URL first")
	}
	s, err := p.exchangePKCE(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	_ = p.store.Delete(storage.KeyAuthVerifier)
	return s, p.persist(s)
}

// AuthorizeURL starts a PKCE flow with an OAuth provider (e.g. "github").
// The code verifier is kept in storage until ExchangeCode consumes it.
func (p *GoTrueProvider) AuthorizeURL(oauthProvider, redirectTo string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	if err := p.store.Set(storage.KeyAuthVerifier, verifier); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(verifier))

	q := url.Values{}
	q.Set("provider", oauthProvider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	q.Set("code_challenge", base64.RawURLEncoding.EncodeToString(sum[:]))
	q.Set("code_challenge_method", "s256")
	return p.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// SignOut revokes the session server-side when possible and always
// forgets it locally.
func (p *GoTrueProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, _ := p.loadStored()
	var err error
	if s != nil && s.AccessToken != "" {
		_, err = call(ctx, func() (struct{}, error) {
			return struct{}{}, p.client.WithToken(s.AccessToken).Logout()
		})
		if err != nil {
			tuilog.Log.Debug("Auth logout request failed", "error", err)
		}
	}
	if derr := p.store.Delete(storage.KeyAuth); derr != nil {
		return derr
	}
	return err
}

// exchangePKCE posts the pkce grant itself: gotrue-go v1.2.0 sends the code
// as "code", while the server reads "auth_code".
func (p *GoTrueProvider) exchangePKCE(ctx context.Context, code, verifier string) (*AuthSession, error) {
	body, err := json.Marshal(map[string]string{"auth_code": code, "code_verifier": verifier})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/v1/token?grant_type=pkce", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pkce exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &AuthError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	var tr types.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode pkce response: %w", err)
	}
	return p.session(tr.Session)
}
