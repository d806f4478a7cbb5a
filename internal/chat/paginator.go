package chat

import (
	"context"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/tuilog"
)

// LoadInitial fetches the most recent page and replaces the window with it.
// On failure the current window and cursors are kept and HistoryError is set.
// A page that arrives after the session was reset or replaced is dropped.
func (e *Engine) LoadInitial(ctx context.Context) error {
	ctx, cancel := e.bind(ctx)
	defer cancel()

	meta, epoch := e.request()
	page, err := e.backend.Messages(ctx, meta, api.PageQuery{Limit: e.pageSize})
	if aborted(ctx, err) {
		return err
	}
	if err != nil {
		tuilog.Log.Warn("Loading history failed", "error", err)
		e.update(func(s *State) Change {
			if s.epoch != epoch {
				return ChangeNone
			}
			s.HistoryError = e.texts.ErrorNotice(err)
			return ChangeStatus
		})
		return err
	}

	var stale bool
	e.update(func(s *State) Change {
		if s.epoch != epoch {
			stale = true
			return ChangeNone
		}
		s.Window = history.Replace(e.texts.pinned(), page)
		s.HistoryError = ""
		return ChangeReplaced
	})
	if stale {
		tuilog.Log.Debug("Discarding initial history for replaced session", "session", meta.SessionID)
		return nil
	}
	tuilog.Log.Debug("Loaded initial history", "messages", len(page.Messages), "more", page.PageInfo.HasMoreBefore)
	return nil
}

// LoadOlder fetches the page before the oldest cursor and prepends it. It
// does nothing when there is no older history, no cursor, or another load
// is in flight; the returned bool reports whether a page was applied.
func (e *Engine) LoadOlder(ctx context.Context) (bool, error) {
	if !e.olderSem.TryAcquire(1) {
		return false, nil
	}
	defer e.olderSem.Release(1)

	var (
		cursor string
		epoch  uint64
		ok     bool
	)
	e.update(func(s *State) Change {
		if !s.Window.HasMoreBefore || s.Window.OldestCursor == nil {
			return ChangeNone
		}
		cursor, epoch, ok = *s.Window.OldestCursor, s.epoch, true
		s.LoadingOlder = true
		return ChangeStatus
	})
	if !ok {
		return false, nil
	}
	meta, at := e.request()
	if at != epoch {
		e.update(func(s *State) Change {
			s.LoadingOlder = false
			return ChangeStatus
		})
		return false, nil
	}

	ctx, cancel := e.bind(ctx)
	defer cancel()

	page, err := e.backend.Messages(ctx, meta, api.PageQuery{Limit: e.pageSize, Before: cursor})
	if err != nil {
		e.update(func(s *State) Change {
			s.LoadingOlder = false
			if s.epoch == epoch && !aborted(ctx, err) {
				s.HistoryError = e.texts.ErrorNotice(err)
			}
			return ChangeStatus
		})
		if !aborted(ctx, err) {
			tuilog.Log.Warn("Loading older history failed", "cursor", cursor, "error", err)
		}
		return false, err
	}

	var added int
	var stale bool
	e.update(func(s *State) Change {
		s.LoadingOlder = false
		if s.epoch != epoch {
			stale = true
			return ChangeStatus
		}
		s.Window, added = history.Prepend(s.Window, page)
		s.HistoryError = ""
		return ChangePrepended
	})
	if stale {
		tuilog.Log.Debug("Discarding older page for replaced session", "session", meta.SessionID, "cursor", cursor)
		return false, nil
	}
	tuilog.Log.Debug("Loaded older history", "cursor", cursor, "added", added, "more", page.PageInfo.HasMoreBefore)
	return true, nil
}

// CatchUp fetches messages newer than the newest cursor and merges them
// without duplicates. Failures are logged and otherwise ignored, and a
// page for a session that was reset meanwhile is dropped.
func (e *Engine) CatchUp(ctx context.Context) {
	ctx, cancel := e.bind(ctx)
	defer cancel()

	q := api.PageQuery{Limit: e.pageSize}
	e.mu.Lock()
	if c := e.state.Window.NewestCursor; c != nil {
		q.After = *c
	}
	epoch := e.state.epoch
	e.mu.Unlock()
	meta, at := e.request()
	if at != epoch {
		return
	}

	page, err := e.backend.Messages(ctx, meta, q)
	if err != nil {
		tuilog.Log.Debug("Catch-up failed", "after", q.After, "error", err)
		return
	}

	var stats history.MergeStats
	var stale bool
	e.update(func(s *State) Change {
		if s.epoch != epoch {
			stale = true
			return ChangeNone
		}
		s.Window, stats = history.CatchUp(s.Window, page)
		if stats.Appended+stats.Confirmed > 0 {
			return ChangeAppended
		}
		return ChangeStatus
	})
	if stale {
		tuilog.Log.Debug("Discarding catch-up page for replaced session", "session", meta.SessionID)
		return
	}
	catchUpMessages.WithLabelValues("appended").Add(float64(stats.Appended))
	catchUpMessages.WithLabelValues("confirmed").Add(float64(stats.Confirmed))
	catchUpMessages.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
}
