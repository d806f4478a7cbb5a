// Package session owns the client-side session identifier and the display
// labels for backend session state.
package session

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curios-os/curios/internal/storage"
	"github.com/curios-os/curios/internal/tuilog"
)

// Store persists the session identifier under storage.KeySessionID.
// The zero value is not usable; use NewStore.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	current string
}

// NewStore returns a Store backed by s.
func NewStore(s storage.Storage) *Store {
	return &Store{storage: s}
}

// Get returns the current session id, generating and persisting one on first
// use. A storage failure is logged and the id lives in memory only.
func (s *Store) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" {
		return s.current
	}
	if v, ok, err := s.storage.Get(storage.KeySessionID); err != nil {
		tuilog.Log.Warn("Session id read failed", "error", err)
	} else if ok && v != "" {
		s.current = v
		return v
	}

	s.current = NewID()
	s.persist(s.current)
	return s.current
}

// Set replaces the current id, typically with one rotated by the backend.
func (s *Store) Set(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
	return s.storage.Set(storage.KeySessionID, id)
}

// Reset discards the current id and persists a freshly generated one.
func (s *Store) Reset() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := NewID()
	s.current = id
	if err := s.storage.Set(storage.KeySessionID, id); err != nil {
		return id, err
	}
	return id, nil
}

func (s *Store) persist(id string) {
	if err := s.storage.Set(storage.KeySessionID, id); err != nil {
		tuilog.Log.Warn("Session id write failed", "error", err)
	}
}

// Watch reports session ids written by another process sharing the same
// storage. It returns a nil channel when the storage cannot be watched.
func (s *Store) Watch(ctx context.Context) (<-chan string, error) {
	w, ok := s.storage.(storage.Watcher)
	if !ok {
		return nil, nil
	}
	keys, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		for key := range keys {
			if key != storage.KeySessionID {
				continue
			}
			id, changed := s.reload()
			if !changed {
				continue
			}
			select {
			case out <- id:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// reload picks up the stored id. It reports whether the id differs from the
// one this Store was using.
func (s *Store) reload() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok, err := s.storage.Get(storage.KeySessionID)
	if err != nil || !ok || v == "" || v == s.current {
		return s.current, false
	}
	tuilog.Log.Info("Session id changed externally", "old", s.current, "new", v)
	s.current = v
	return v, true
}

// NewID generates a session identifier. It prefers a random UUID and falls
// back to a random+timestamp composite.
func NewID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return "web-" + fallbackID()
}

func fallbackID() string {
	r, err := rand.Int(rand.Reader, big.NewInt(1<<40))
	var n int64
	if err == nil {
		n = r.Int64()
	} else {
		n = time.Now().UnixNano() & (1<<40 - 1)
	}
	return strconv.FormatInt(n, 36) + strconv.FormatInt(time.Now().UnixMilli(), 36)
}
