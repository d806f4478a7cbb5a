package devserver

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// Conversation states.
const (
	StateWelcome          = "WELCOME"
	StateAwaitingEmail    = "AWAITING_EMAIL"
	StateAwaitingPassword = "AWAITING_PASSWORD"
	StateNeedsProvider    = "NEEDS_PROVIDER"
	StateReady            = "READY"
)

const (
	chatText   = "text"
	chatSecret = "secret"

	redacted = "[redacted]"
)

var knownProviders = []string{"openai", "azure_openai", "anthropic", "google", "gemini", "xai", "mistral", "ollama"}

// turn is the outcome of one user message.
type turn struct {
	reply    string
	userKind string // how the user message is stored
}

// advance runs the onboarding state machine for one user message.
// Caller holds s.mu.
func (s *Server) advance(sd *sessionData, message string) turn {
	text := strings.TrimSpace(message)
	lower := strings.ToLower(text)
	t := turn{userKind: chatText}

	switch sd.state {
	case StateWelcome:
		switch {
		case strings.Contains(lower, "guest"):
			sd.state = StateNeedsProvider
			t.reply = "Continuing as a guest. " + providerPrompt()
		case strings.Contains(lower, "sign in"), strings.Contains(lower, "login"),
			strings.Contains(lower, "log in"), strings.Contains(lower, "account"):
			sd.state = StateAwaitingEmail
			t.reply = "What is your email address?"
		default:
			t.reply = "Do you want to create an account, sign in or continue as a guest?"
		}

	case StateAwaitingEmail:
		addr, err := mail.ParseAddress(text)
		if err != nil {
			t.reply = "That does not look like an email address. Please try again."
			break
		}
		sd.pendingEmail = addr.Address
		sd.state = StateAwaitingPassword
		sd.chatType = chatSecret
		t.reply = "Enter your password."

	case StateAwaitingPassword:
		t.userKind = chatSecret
		sd.chatType = chatText
		if text == "" {
			sd.chatType = chatSecret
			t.reply = "The password cannot be empty."
			break
		}
		sd.user = &User{ID: uuid.NewString(), Email: sd.pendingEmail}
		sd.userFromToken = false
		sd.pendingEmail = ""
		sd.state = StateNeedsProvider
		t.reply = fmt.Sprintf("Signed in as %s. %s", sd.user.Email, providerPrompt())

	case StateNeedsProvider:
		p := strings.ReplaceAll(strings.ReplaceAll(lower, "-", "_"), " ", "_")
		for _, known := range knownProviders {
			if p == known {
				sd.provider = known
				sd.state = StateReady
				t.reply = fmt.Sprintf("Provider set to %s. Ask me anything.", known)
				return t
			}
		}
		t.reply = "Unknown provider. " + providerPrompt()

	default:
		t.reply = "You said: " + text
	}
	return t
}

func providerPrompt() string {
	return "Which AI provider do you want to use? (" + strings.Join(knownProviders, ", ") + ")"
}
