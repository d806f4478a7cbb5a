// Package storage provides the durable key/value store that plays the role of
// browser local storage for curios: the session identifier, the theme
// preference and the persisted auth session survive restarts here.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Well-known keys.
const (
	KeySessionID = "curios.sessionId"
	KeyTheme     = "curios.theme"
	KeyAuth      = "curios.auth"

	// KeyAuthVerifier holds the PKCE code verifier of a pending sign-in.
	KeyAuthVerifier = "curios.auth.verifier"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage closed")

// Storage is a string key/value store that persists across process restarts.
type Storage interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Watcher is implemented by stores that can report changes made by other
// processes sharing the same backing file.
type Watcher interface {
	// Watch emits the keys whose values changed outside this Storage value.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}

// Open opens the store for the given backend ("file" or "sqlite").
func Open(backend, path string) (Storage, error) {
	switch backend {
	case "", "file":
		return OpenFile(path)
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
