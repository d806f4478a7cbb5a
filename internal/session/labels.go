package session

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var stateLabels = map[string]string{
	"ready":                   "Ready",
	"initialized":             "Ready",
	"init":                    "Starting",
	"starting":                "Starting",
	"booting":                 "Starting",
	"bootstrap":               "Starting",
	"bootstrapping":           "Starting",
	"loading":                 "Loading",
	"connecting":              "Connecting",
	"connected":               "Connected",
	"authenticated":           "Signed in",
	"unauthenticated":         "Guest",
	"needs_auth":              "Sign-in required",
	"needs_login":             "Sign-in required",
	"needs_provider":          "AI provider required",
	"provider_required":       "AI provider required",
	"provider_not_configured": "AI provider not configured",
	"error":                   "Error",
}

var providerLabels = map[string]string{
	"openai":       "OpenAI",
	"azure_openai": "Azure OpenAI",
	"anthropic":    "Anthropic",
	"google":       "Google",
	"gemini":       "Google Gemini",
	"xai":          "xAI",
	"mistral":      "Mistral",
	"ollama":       "Ollama",
}

// Words that stay fully upper-case in generated labels.
var acronyms = map[string]bool{"ai": true, "id": true, "oauth": true, "api": true, "url": true}

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	keyReplacer     = strings.NewReplacer("-", "_", ".", "_")
	labelSeparators = regexp.MustCompile(`[_\-.\s]+`)
)

// StateLabel returns the display label for a backend state. Unknown states
// are title-cased; the empty state is "Welcome".
func StateLabel(state string) string {
	if strings.TrimSpace(state) == "" {
		return "Welcome"
	}
	if label, ok := stateLabels[normalizeKey(state)]; ok {
		return label
	}
	return titleFromIdentifier(state)
}

// ProviderLabel returns the display name of an AI provider id.
func ProviderLabel(provider string) string {
	if strings.TrimSpace(provider) == "" {
		return ""
	}
	if label, ok := providerLabels[normalizeKey(provider)]; ok {
		return label
	}
	return titleFromIdentifier(provider)
}

func normalizeKey(v string) string {
	return keyReplacer.Replace(whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(v)), "_"))
}

func titleFromIdentifier(v string) string {
	caser := cases.Title(language.English) // Casers are stateful; not shared.
	words := strings.Fields(labelSeparators.ReplaceAllString(strings.ToLower(v), " "))
	for i, w := range words {
		if acronyms[w] {
			words[i] = strings.ToUpper(w)
		} else {
			words[i] = caser.String(w)
		}
	}
	return strings.Join(words, " ")
}
