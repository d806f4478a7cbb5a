package chat

import (
	"context"

	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/tuilog"
)

// ResetSession starts over: the backend is asked to drop the session
// (best effort), a new session id is generated, the transcript collapses
// to the header and greeting, and the bootstrap runs again.
func (e *Engine) ResetSession(ctx context.Context) error {
	e.cancelRetry()

	ctx, cancel := e.bind(ctx)
	defer cancel()

	if err := e.backend.DeleteSession(ctx, e.meta()); err != nil {
		tuilog.Log.Debug("Deleting session failed", "error", err)
	}

	id, err := e.sessions.Reset()
	if err != nil {
		tuilog.Log.Warn("Persisting new session id failed", "error", err)
	}
	tuilog.Log.Info("Session reset", "session", id)

	e.update(func(s *State) Change {
		s.replaceSession(id)
		s.State = InitialState
		s.User = nil
		s.ProviderConfigured = false
		s.SelectedProvider = ""
		s.Masking = false
		s.Error = ""
		s.HistoryError = ""
		s.LoadingOlder = false
		s.Window = history.Initial(e.texts.pinned())
		return ChangeReset
	})
	return e.bootstrap(ctx)
}
