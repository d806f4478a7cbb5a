package chat

import (
	"context"
	"math"
	"time"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/tuilog"
)

// RetryPolicy schedules the re-syncs that follow a sign-in, while the
// backend may not yet have linked the new token to the session.
type RetryPolicy struct {
	Initial  time.Duration
	Factor   float64
	Max      time.Duration
	Attempts int // retries after the first attempt
}

// DefaultRetryPolicy waits 350, 525, 787, 1181 and 1772 ms between attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Initial:  350 * time.Millisecond,
		Factor:   1.5,
		Max:      2 * time.Second,
		Attempts: 5,
	}
}

// Delays returns the wait before each retry. Delays are whole milliseconds
// when Initial is at least one millisecond; half-millisecond steps round down.
func (p RetryPolicy) Delays() []time.Duration {
	out := make([]time.Duration, 0, p.Attempts)
	unit := time.Millisecond
	if p.Initial < time.Millisecond {
		unit = time.Nanosecond
	}
	for n := 0; n < p.Attempts; n++ {
		x := float64(p.Initial) / float64(unit) * math.Pow(p.Factor, float64(n))
		d := time.Duration(math.Ceil(x-0.5)) * unit
		if p.Max > 0 && d > p.Max {
			d = p.Max
		}
		out = append(out, d)
	}
	return out
}

// RefreshSession describes the session to the backend and applies the
// result. With busy set, SessionLoading is raised for the duration. It
// returns the normalized session, or nil on failure or abort; failures are
// recorded in State.Error and never returned.
func (e *Engine) RefreshSession(ctx context.Context, reason string, busy bool) *api.Session {
	ctx, cancel := e.bind(ctx)
	defer cancel()

	if busy {
		e.update(func(s *State) Change {
			s.SessionLoading = true
			return ChangeStatus
		})
	}

	meta, epoch := e.request()
	tuilog.Log.Debug("Refreshing session", "reason", reason, "session", meta.SessionID, "busy", busy)
	sess, err := e.backend.GetSession(ctx, meta)

	if aborted(ctx, err) {
		tuilog.Log.Debug("Session refresh aborted", "reason", reason)
		if busy {
			e.update(func(s *State) Change {
				s.SessionLoading = false
				return ChangeStatus
			})
		}
		return nil
	}

	// A response for a session that was reset or replaced meanwhile is dropped.
	var stale, rotated bool
	if err != nil {
		tuilog.Log.Warn("Session refresh failed", "reason", reason, "error", err)
		e.update(func(s *State) Change {
			if s.epoch != epoch {
				stale = true
				return clearLoading(s, busy)
			}
			s.User = nil
			s.ProviderConfigured = false
			s.SelectedProvider = ""
			s.Error = e.texts.ErrorNotice(err)
			s.SessionSynced = true
			if busy {
				s.SessionLoading = false
			}
			return ChangeSession
		})
		return nil
	}

	e.update(func(s *State) Change {
		if s.epoch != epoch {
			stale = true
			return clearLoading(s, busy)
		}
		rotated = adoptRotation(s, meta.SessionID, sess.SessionID)
		s.State = sess.State
		s.User = sess.User
		s.ProviderConfigured = sess.ProviderConfigured
		s.SelectedProvider = sess.SelectedProvider
		s.Masking = sess.Masking()
		s.Error = ""
		s.SessionSynced = true
		if busy {
			s.SessionLoading = false
		}
		return ChangeSession
	})
	if stale {
		tuilog.Log.Debug("Discarding session for replaced id", "reason", reason, "session", meta.SessionID)
		return nil
	}
	if rotated {
		e.persistRotation(meta.SessionID, sess.SessionID)
	}
	return sess
}

func clearLoading(s *State, busy bool) Change {
	if !busy {
		return ChangeNone
	}
	s.SessionLoading = false
	return ChangeStatus
}

// SyncAfterIdentityChange re-syncs the session after the access token
// changed. On sign-out it refreshes once. Otherwise it refreshes and, while
// the provider reports a user the backend has not resolved yet, retries on
// the RetryPolicy schedule. Only one sequence runs at a time: starting one
// cancels the previous. The returned channel is closed when the sequence
// ends or is cancelled.
func (e *Engine) SyncAfterIdentityChange(signedOut bool, reason string) <-chan struct{} {
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(e.ctx)

	e.retryMu.Lock()
	if e.retryCancel != nil {
		e.retryCancel()
	}
	e.retryCancel = cancel
	e.retryMu.Unlock()

	started := e.spawn(func() {
		defer close(done)
		defer cancel()

		if signedOut {
			e.RefreshSession(ctx, reason, false)
			return
		}
		e.refreshUntilLinked(ctx, reason)
	})
	if !started {
		cancel()
		close(done)
	}
	return done
}

func (e *Engine) refreshUntilLinked(ctx context.Context, reason string) {
	delays := e.retry.Delays()
	for attempt := 0; ; attempt++ {
		resyncAttempts.Inc()
		sess := e.RefreshSession(ctx, reason, false)
		if ctx.Err() != nil {
			return
		}
		if !e.Identity().SignedIn() || (sess != nil && sess.User != nil) {
			return
		}
		if attempt >= len(delays) {
			tuilog.Log.Warn("Backend never linked signed-in user", "reason", reason, "attempts", attempt+1)
			return
		}

		tuilog.Log.Debug("Backend user not linked yet, retrying", "attempt", attempt+1, "delay", delays[attempt])
		timer := time.NewTimer(delays[attempt])
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// cancelRetry stops the pending identity re-sync, if any.
func (e *Engine) cancelRetry() {
	e.retryMu.Lock()
	defer e.retryMu.Unlock()
	if e.retryCancel != nil {
		e.retryCancel()
		e.retryCancel = nil
	}
}
