package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Query keys removed from a callback URL once it has been handled.
var callbackQueryKeys = []string{"code", "type", "provider", "error", "error_code", "error_description"}

// RedirectResult describes a handled auth callback.
type RedirectResult struct {
	Handled  bool
	CleanURL string // the callback URL with auth params removed
}

// ErrRedirectHandled is returned when a callback has already been processed
// by this Adapter.
var ErrRedirectHandled = errors.New("auth redirect already handled")

// HandleRedirect completes sign-in from a callback URL. It accepts implicit
// flow tokens in the fragment (#access_token=…&refresh_token=…) and PKCE
// codes in the query (?code=…). Only the first call on an Adapter does any
// work; later calls return ErrRedirectHandled.
func (a *Adapter) HandleRedirect(ctx context.Context, rawURL string) (RedirectResult, error) {
	if !a.redirectGuard.claim() {
		return RedirectResult{}, ErrRedirectHandled
	}
	if a.provider == nil {
		return RedirectResult{}, ErrUnavailable
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return RedirectResult{}, fmt.Errorf("parse callback url: %w", err)
	}
	fragment, _ := url.ParseQuery(u.Fragment)
	query := u.Query()

	var s *AuthSession
	switch {
	case fragment.Get("access_token") != "" && fragment.Get("refresh_token") != "":
		s, err = a.provider.SetSession(ctx, fragment.Get("access_token"), fragment.Get("refresh_token"))
	case query.Get("code") != "":
		s, err = a.provider.ExchangeCode(ctx, query.Get("code"))
	case query.Get("error_description") != "" || query.Get("error") != "":
		msg := query.Get("error_description")
		if msg == "" {
			msg = query.Get("error")
		}
		err = fmt.Errorf("auth callback error: %s", msg)
	default:
		return RedirectResult{CleanURL: rawURL}, nil
	}

	res := RedirectResult{CleanURL: cleanCallbackURL(u)}
	if err != nil {
		return res, err
	}
	a.publish(fromSession(s))
	res.Handled = true
	return res, nil
}

// ResetRedirectGuard allows HandleRedirect to run again.
func (a *Adapter) ResetRedirectGuard() {
	a.redirectGuard.reset()
}

func cleanCallbackURL(u *url.URL) string {
	clean := *u
	q := clean.Query()
	for _, k := range callbackQueryKeys {
		q.Del(k)
	}
	clean.RawQuery = q.Encode()
	clean.Fragment = ""
	clean.RawFragment = ""
	return clean.String()
}
