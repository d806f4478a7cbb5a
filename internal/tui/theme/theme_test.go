package theme

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedThemes(t *testing.T) {
	names := ListEmbedded()
	if len(names) != 2 || names[0] != Dark || names[1] != Light {
		t.Fatalf("ListEmbedded = %v", names)
	}
	for _, name := range names {
		th, err := LoadEmbedded(name)
		if err != nil {
			t.Fatalf("LoadEmbedded(%s): %v", name, err)
		}
		if th.Name != name || th.GlamourStyle() != name || th.UserBubble.Bg == "" {
			t.Errorf("%s theme incomplete: %+v", name, th)
		}
	}
}

func TestToggleAndResolve(t *testing.T) {
	if Toggle(Dark) != Light || Toggle(Light) != Dark || Toggle("solarized") != Light {
		t.Error("Toggle does not alternate between dark and light")
	}
	tests := []struct {
		stored, configured, want string
	}{
		{"light", "dark", Light},
		{"", "light", Light},
		{"bogus", "", Dark},
		{"", "", Dark},
	}
	for _, tt := range tests {
		if got := Resolve(tt.stored, tt.configured); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.stored, tt.configured, got, tt.want)
		}
	}
}

func TestLoadByName_UserOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CURIOS_HOME", home)
	dir := filepath.Join(home, "themes")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "light.json"), []byte(`{"accent":"#123456"}`), 0644); err != nil {
		t.Fatal(err)
	}

	th, err := LoadByName(Light)
	if err != nil {
		t.Fatalf("LoadByName: %v", err)
	}
	if th.Accent != "#123456" {
		t.Errorf("accent = %q, want override", th.Accent)
	}
	if th.Glamour != Light {
		t.Errorf("glamour = %q, want embedded value kept", th.Glamour)
	}
}

func TestUse(t *testing.T) {
	t.Setenv("CURIOS_HOME", t.TempDir())
	if _, err := Use(Light); err != nil {
		t.Fatal(err)
	}
	if Current().Name != Light {
		t.Errorf("Current = %q", Current().Name)
	}
	if _, err := Use("missing"); err == nil {
		t.Error("expected error for unknown theme")
	}
	if Current().Name != Dark {
		t.Errorf("fallback theme = %q, want dark", Current().Name)
	}
	Use(Dark)
}
