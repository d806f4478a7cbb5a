package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/curios-os/curios/internal/api"
	"github.com/curios-os/curios/internal/history"
	"github.com/curios-os/curios/internal/tuilog"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrSendInFlight   = errors.New("a message is already being sent")
	ErrSessionLoading = errors.New("session is still loading")
)

// Send delivers a user turn. The user message is shown immediately (masked
// when the session is in secret mode) and the reply is appended when it
// arrives. A failed request is reported in the transcript as an assistant
// message and also returned.
func (e *Engine) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if e.Snapshot().SessionLoading {
		return ErrSessionLoading
	}
	if !e.sendSem.TryAcquire(1) {
		return ErrSendInFlight
	}
	defer e.sendSem.Release(1)

	ctx, cancel := e.bind(ctx)
	defer cancel()

	var prevState string
	var activeContext string
	var epoch uint64
	e.update(func(s *State) Change {
		prevState = s.State
		activeContext = s.ActiveContext
		epoch = s.epoch
		s.Sending = true
		s.Window = history.Append(s.Window, history.NewUserMessage(text, s.Masking))
		return ChangeAppended
	})
	defer e.update(func(s *State) Change {
		s.Sending = false
		return ChangeStatus
	})

	meta := e.meta()
	meta.Context = activeContext
	reply, err := e.backend.Chat(ctx, meta, text)
	if aborted(ctx, err) {
		sendsTotal.WithLabelValues("aborted").Inc()
		return err
	}
	if err != nil {
		sendsTotal.WithLabelValues("error").Inc()
		tuilog.Log.Warn("Send failed", "error", err)
		e.update(func(s *State) Change {
			if s.epoch != epoch {
				return ChangeNone
			}
			s.Window = history.Append(s.Window, history.NewAssistantMessage(e.texts.ErrorNotice(err)))
			return ChangeAppended
		})
		return err
	}
	sendsTotal.WithLabelValues("ok").Inc()

	var stale, rotated bool
	e.update(func(s *State) Change {
		// Only a reset or an external switch discards the reply. A rotation
		// adopted by a concurrent refresh keeps it.
		if s.epoch != epoch {
			stale = true
			return ChangeNone
		}
		rotated = adoptRotation(s, meta.SessionID, reply.SessionID)
		s.Masking = reply.ChatType == api.ChatTypeSecret
		if reply.State != "" {
			s.State = reply.State
		}
		s.Window = history.Append(s.Window, history.NewAssistantMessage(reply.Reply))
		return ChangeAppended
	})
	if stale {
		tuilog.Log.Debug("Discarding reply for replaced session", "session", meta.SessionID)
		return nil
	}
	if rotated {
		e.persistRotation(meta.SessionID, reply.SessionID)
	}

	if reply.State != "" && reply.State != prevState {
		tuilog.Log.Debug("Conversation state changed", "from", prevState, "to", reply.State)
		e.SyncAfterIdentityChange(false, "state transition")
	}
	e.CatchUp(ctx)
	return nil
}
