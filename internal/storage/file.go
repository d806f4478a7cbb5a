package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/curios-os/curios/internal/tuilog"
)

// watchDebounce coalesces the burst of events a single rename-into-place produces.
const watchDebounce = 50 * time.Millisecond

// FileStorage keeps all keys in one JSON object on disk. Every read goes to
// the file so that a second curios process sees the latest values.
type FileStorage struct {
	path string

	mu       sync.Mutex
	snapshot map[string]string // last contents seen or written by this value
	closed   bool
}

// OpenFile opens (or creates) a JSON file store at path.
func OpenFile(path string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	s := &FileStorage{path: path}
	data, err := s.read()
	if err != nil {
		return nil, err
	}
	s.snapshot = data
	return s, nil
}

// Path returns the backing file path.
func (s *FileStorage) Path() string { return s.path }

func (s *FileStorage) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage: %w", err)
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode storage %s: %w", s.path, err)
	}
	return values, nil
}

// write replaces the file atomically so readers never see a partial object.
func (s *FileStorage) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}

// Get implements Storage.
func (s *FileStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}
	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set implements Storage.
func (s *FileStorage) Set(key, value string) error {
	return s.mutate(func(values map[string]string) { values[key] = value })
}

// Delete implements Storage.
func (s *FileStorage) Delete(key string) error {
	return s.mutate(func(values map[string]string) { delete(values, key) })
}

func (s *FileStorage) mutate(fn func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	values, err := s.read()
	if err != nil {
		return err
	}
	fn(values)
	if err := s.write(values); err != nil {
		return err
	}
	s.snapshot = copyMap(values)
	return nil
}

// Close implements Storage.
func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Watch implements Watcher. The parent directory is watched rather than the
// file itself because writes replace the file by rename.
func (s *FileStorage) Watch(ctx context.Context) (<-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(s.path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	out := make(chan string, 16)
	go s.watchLoop(ctx, fw, out)
	return out, nil
}

func (s *FileStorage) watchLoop(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	defer close(out)
	defer fw.Close()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			debounce = time.After(watchDebounce)

		case <-debounce:
			debounce = nil
			for _, key := range s.diffExternal() {
				select {
				case out <- key:
				case <-ctx.Done():
					return
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			tuilog.Log.Warn("Storage watcher error", "path", s.path, "error", err)
		}
	}
}

// diffExternal re-reads the file and returns the keys that differ from the
// last snapshot. Writes made through this value already updated the snapshot,
// so they are not reported.
func (s *FileStorage) diffExternal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	current, err := s.read()
	if err != nil {
		tuilog.Log.Debug("Storage reread failed", "path", s.path, "error", err)
		return nil
	}
	var changed []string
	for k, v := range current {
		if old, ok := s.snapshot[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	for k := range s.snapshot {
		if _, ok := current[k]; !ok {
			changed = append(changed, k)
		}
	}
	s.snapshot = current
	return changed
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
