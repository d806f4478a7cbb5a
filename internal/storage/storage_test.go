package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func openBackends(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()

	file, err := OpenFile(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	db, err := OpenSQLite(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		file.Close()
		db.Close()
	})
	return map[string]Storage{
		"file":   file,
		"sqlite": db,
		"memory": NewMemory(),
	}
}

func TestStorageRoundTrip(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(KeySessionID); err != nil || ok {
				t.Fatalf("Get on empty store = ok %v, err %v", ok, err)
			}
			if err := s.Set(KeySessionID, "abc"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(KeySessionID, "def"); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			v, ok, err := s.Get(KeySessionID)
			if err != nil || !ok || v != "def" {
				t.Fatalf("Get = %q, %v, %v; want def", v, ok, err)
			}
			if err := s.Delete(KeySessionID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, ok, _ := s.Get(KeySessionID); ok {
				t.Fatal("key still present after Delete")
			}
			// Deleting a missing key is not an error.
			if err := s.Delete("missing"); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
		})
	}
}

func TestFileStoragePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.Set(KeyTheme, "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	again, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	if v, _, _ := again.Get(KeyTheme); v != "light" {
		t.Errorf("theme = %q, want light", v)
	}
}

func TestFileStorageSeesOtherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	a, _ := OpenFile(path)
	b, _ := OpenFile(path)
	defer a.Close()
	defer b.Close()

	if err := a.Set(KeySessionID, "from-a"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, _ := b.Get(KeySessionID); !ok || v != "from-a" {
		t.Errorf("b.Get = %q, %v; want from-a", v, ok)
	}
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClosedStorage(t *testing.T) {
	s := NewMemory()
	s.Close()
	if err := s.Set("k", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close = %v, want ErrClosed", err)
	}

	f, err := OpenFile(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if _, _, err := f.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("sqlite", filepath.Join(dir, "x.db"))
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	s.Close()

	if _, err := Open("redis", filepath.Join(dir, "x")); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestFileStorageWatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "state.json")
	mine, _ := OpenFile(path)
	other, _ := OpenFile(path)
	defer mine.Close()
	defer other.Close()

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := mine.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Own writes are not reported.
	if err := mine.Set(KeyTheme, "dark"); err != nil {
		t.Fatal(err)
	}
	if err := other.Set(KeySessionID, "external"); err != nil {
		t.Fatal(err)
	}

	select {
	case key := <-changes:
		if key != KeySessionID {
			t.Errorf("changed key = %q, want %q", key, KeySessionID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	for range changes {
	}
}

func TestMemoryStorageWatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	changes, _ := m.Watch(ctx)

	m.Set(KeyTheme, "light") // local write, not reported
	m.SetExternal(KeySessionID, "x")

	select {
	case key := <-changes:
		if key != KeySessionID {
			t.Errorf("changed key = %q", key)
		}
	case <-time.After(time.Second):
		t.Fatal("no change reported")
	}
	cancel()
	for range changes {
	}
}
