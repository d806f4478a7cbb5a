// Package i18n localizes the strings curios shows: the pinned greeting,
// error notices, the chat screen and CLI output.
//
//	i18n.Init(i18n.ResolveLocale(cfg.Language))
//	i18n.T("tui.chat.placeholder", "Type a message...")
//	i18n.Tf("cmd.session.reset", "New session: %s", id)
//	i18n.Tn("common.time.hoursAgo", "{{.Count}} hour ago", "{{.Count}} hours ago", n)
//
// The English text passed at the call site is the source of truth; en.toml
// mirrors it and other locales translate it.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	mu        sync.RWMutex
	localizer *i18n.Localizer
	active    = language.English
)

// Init selects the language used by T, Tf and Tn. Tags with no locale file
// match the closest available one ("es-MX" uses es) and anything else falls
// back to English. Init may be called again after the config is loaded.
func Init(lang string) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, _ := localeFS.ReadDir("locales")
	for _, e := range entries {
		_, _ = bundle.LoadMessageFileFS(localeFS, "locales/"+e.Name())
	}

	tag := language.English
	if requested, err := language.Parse(lang); err == nil {
		matched, _, conf := language.NewMatcher(bundle.LanguageTags()).Match(requested)
		if conf != language.No {
			base, _ := matched.Base()
			tag = language.Make(base.String())
		}
	}

	mu.Lock()
	defer mu.Unlock()
	localizer = i18n.NewLocalizer(bundle, tag.String(), "en")
	active = tag
}

// Language returns the tag of the active locale, e.g. "es".
func Language() string {
	mu.RLock()
	defer mu.RUnlock()
	return active.String()
}

func current() *i18n.Localizer {
	mu.RLock()
	defer mu.RUnlock()
	return localizer
}

// T returns the localized string for id, or defaultMsg when there is no
// translation.
func T(id string, defaultMsg string) string {
	l := current()
	if l == nil {
		return defaultMsg
	}
	s, err := l.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{ID: id, Other: defaultMsg},
	})
	if err != nil {
		return defaultMsg
	}
	return s
}

// Tf is T followed by fmt.Sprintf.
func Tf(id string, defaultMsg string, args ...any) string {
	return fmt.Sprintf(T(id, defaultMsg), args...)
}

// Tn returns the plural form for count. one and other are templates that
// may reference {{.Count}}.
func Tn(id string, one string, other string, count int) string {
	fallback := other
	if count == 1 {
		fallback = one
	}
	fallback = strings.ReplaceAll(fallback, "{{.Count}}", strconv.Itoa(count))

	l := current()
	if l == nil {
		return fallback
	}
	s, err := l.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{ID: id, One: one, Other: other},
		PluralCount:    count,
		TemplateData:   map[string]int{"Count": count},
	})
	if err != nil {
		return fallback
	}
	return s
}

// ResolveLocale picks the locale tag to pass to Init.
// Priority: CURIOS_LANG > configLang > LC_ALL > LANG > "en".
func ResolveLocale(configLang string) string {
	if v := os.Getenv("CURIOS_LANG"); v != "" {
		return v
	}
	if configLang != "" {
		return configLang
	}
	for _, env := range []string{"LC_ALL", "LANG"} {
		if v := posixToBCP47(os.Getenv(env)); v != "" {
			return v
		}
	}
	return "en"
}

// posixToBCP47 turns "es_MX.UTF-8" into "es-MX". The C and POSIX locales
// carry no language and yield "".
func posixToBCP47(posix string) string {
	posix, _, _ = strings.Cut(posix, ".")
	posix, _, _ = strings.Cut(posix, "@")
	if posix == "" || posix == "C" || posix == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(posix, "_", "-")
}
