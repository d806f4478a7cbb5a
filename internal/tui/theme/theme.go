// Package theme provides theming support for the TUI.
package theme

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/curios-os/curios/internal/config"
)

//go:embed themes/*.json
var embeddedThemes embed.FS

// Built-in theme names. The chat screen toggles between these two.
const (
	Dark  = "dark"
	Light = "light"
)

// Style defines colors and text attributes for a UI element.
type Style struct {
	Fg        string `json:"fg,omitempty"`
	Bg        string `json:"bg,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
}

// Theme defines all styles used in the TUI.
type Theme struct {
	// Metadata
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	// UI chrome - accent colors for borders, highlights
	Accent         string `json:"accent,omitempty"`          // Primary accent (active elements)
	BorderActive   string `json:"border_active,omitempty"`   // Active/focused borders
	BorderInactive string `json:"border_inactive,omitempty"` // Inactive borders

	// Text styles (typically fg-only, on terminal default bg)
	TextPrimary   Style `json:"text_primary,omitempty"`
	TextSecondary Style `json:"text_secondary,omitempty"`
	TextMuted     Style `json:"text_muted,omitempty"`

	// Transcript bubbles (fg + bg)
	UserBubble      Style `json:"user_bubble,omitempty"`
	AssistantBubble Style `json:"assistant_bubble,omitempty"`
	SecretBubble    Style `json:"secret_bubble,omitempty"`
	Greeting        Style `json:"greeting,omitempty"`
	Logo            Style `json:"logo,omitempty"`

	// Status line
	StatusBar  Style `json:"status_bar,omitempty"`
	ErrorText  Style `json:"error_text,omitempty"`
	ContextTag Style `json:"context_tag,omitempty"`

	// Confirm dialog
	ConfirmPrompt     Style `json:"confirm_prompt,omitempty"`
	ConfirmSelected   Style `json:"confirm_selected,omitempty"`
	ConfirmUnselected Style `json:"confirm_unselected,omitempty"`

	// Glamour is the glamour standard style used for assistant markdown.
	Glamour string `json:"glamour,omitempty"`
}

// DefaultTheme returns the default dark theme (embedded fallback).
func DefaultTheme() Theme {
	theme, _ := LoadEmbedded(Dark)
	return theme
}

// LoadEmbedded loads a theme from the embedded themes.
func LoadEmbedded(name string) (Theme, error) {
	data, err := embeddedThemes.ReadFile("themes/" + name + ".json")
	if err != nil {
		return Theme{}, fmt.Errorf("unknown theme %q", name)
	}

	var theme Theme
	if err := json.Unmarshal(data, &theme); err != nil {
		return Theme{}, err
	}
	theme.Name = name
	return theme, nil
}

// ListEmbedded returns the names of all embedded themes.
func ListEmbedded() []string {
	entries, err := embeddedThemes.ReadDir("themes")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	sort.Strings(names)
	return names
}

// ThemesDir returns the path to the user themes directory.
func ThemesDir() (string, error) {
	configDir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "themes"), nil
}

// LoadByName loads a theme by name. A file in ~/.curios/themes overrides the
// embedded theme of the same name; its missing fields keep the embedded values.
func LoadByName(name string) (Theme, error) {
	base, embErr := LoadEmbedded(name)
	if embErr != nil {
		base = DefaultTheme()
	}

	if themesDir, err := ThemesDir(); err == nil {
		if data, err := os.ReadFile(filepath.Join(themesDir, name+".json")); err == nil {
			theme := base
			if err := json.Unmarshal(data, &theme); err != nil {
				return base, fmt.Errorf("parse theme %s: %w", name, err)
			}
			theme.Name = name
			return theme, nil
		}
	}

	if embErr != nil {
		return base, embErr
	}
	return base, nil
}

// Toggle returns the built-in theme opposite to name.
func Toggle(name string) string {
	if name == Light {
		return Dark
	}
	return Light
}

// Resolve picks the starting theme: the stored preference when valid, then
// the configured one, then dark.
func Resolve(stored, configured string) string {
	for _, name := range []string{stored, configured} {
		if name == Dark || name == Light {
			return name
		}
	}
	return Dark
}

var (
	mu      sync.RWMutex
	current *Theme
)

// Current returns the active theme, defaulting to dark.
func Current() Theme {
	mu.RLock()
	c := current
	mu.RUnlock()
	if c != nil {
		return *c
	}
	return DefaultTheme()
}

// Use makes the named theme active. On error the dark theme is used.
func Use(name string) (Theme, error) {
	theme, err := LoadByName(name)
	mu.Lock()
	current = &theme
	mu.Unlock()
	return theme, err
}

// GetAccent returns the accent color, with fallback.
func (t Theme) GetAccent() string {
	if t.Accent != "" {
		return t.Accent
	}
	return "#7D56F4"
}

// GetBorderActive returns the active border color.
func (t Theme) GetBorderActive() string {
	if t.BorderActive != "" {
		return t.BorderActive
	}
	return t.GetAccent()
}

// GetBorderInactive returns the inactive border color.
func (t Theme) GetBorderInactive() string {
	if t.BorderInactive != "" {
		return t.BorderInactive
	}
	return "#444444"
}

// GlamourStyle returns the glamour standard style name for the theme.
func (t Theme) GlamourStyle() string {
	if t.Glamour != "" {
		return t.Glamour
	}
	return Dark
}
