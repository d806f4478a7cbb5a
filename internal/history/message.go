// Package history holds the chat transcript window and the pure merge
// functions that combine it with pages of server history.
package history

import (
	"strconv"
	"sync/atomic"

	"github.com/curios-os/curios/internal/api"
)

// MaskToken replaces the content of secret messages. Its length is fixed so
// it never reveals the length of the input.
const MaskToken = "••••••••"

// Kind classifies message content.
type Kind string

const (
	KindText   Kind = "text"
	KindSecret Kind = "secret"
)

// Position is a layout hint for the rendering layer.
type Position string

const (
	PositionCenter Position = "center"
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
)

// Pin marks the synthetic entries shown at the top of an empty transcript.
type Pin int

const (
	PinNone Pin = iota
	PinHeader
	PinGreeting
)

// Message is one transcript entry.
type Message struct {
	ID        string
	Role      string
	Raw       string // empty for secret messages
	Display   string
	CreatedAt string // server timestamp; empty until confirmed
	Kind      Kind
	Position  Position
	Pinned    Pin
}

var idSeq atomic.Uint64

func nextID() string {
	return "m" + strconv.FormatUint(idSeq.Add(1), 36)
}

// Content is the raw text when known, else the display text.
func (m Message) Content() string {
	if m.Raw != "" {
		return m.Raw
	}
	return m.Display
}

// Optimistic reports whether the message was added locally and has not yet
// been matched to a stored server message.
func (m Message) Optimistic() bool {
	return m.Pinned == PinNone && m.CreatedAt == ""
}

// Fingerprint identifies a message for de-duplication.
func (m Message) Fingerprint() string {
	return m.CreatedAt + "\x00" + m.Role + "\x00" + string(m.Kind) + "\x00" + m.Content()
}

func positionFor(role string) Position {
	switch role {
	case api.RoleUser:
		return PositionRight
	case api.RoleSystem:
		return PositionCenter
	default:
		return PositionLeft
	}
}

func newMessage(role, text string, kind Kind, createdAt string) Message {
	m := Message{
		ID:        nextID(),
		Role:      role,
		CreatedAt: createdAt,
		Kind:      kind,
		Position:  positionFor(role),
	}
	if kind == KindSecret {
		m.Display = MaskToken
	} else {
		m.Raw = text
		m.Display = text
	}
	return m
}

// FromServer converts a stored server message.
func FromServer(sm api.ServerMessage) Message {
	kind := KindText
	if sm.DataInputType == api.ChatTypeSecret {
		kind = KindSecret
	}
	return newMessage(api.NormalizeRole(sm.Role), sm.Content, kind, sm.CreatedAt)
}

// NewUserMessage builds the optimistic entry for a user turn. With masking
// on, the text is neither stored nor reflected in the display.
func NewUserMessage(text string, masking bool) Message {
	kind := KindText
	if masking {
		kind = KindSecret
	}
	return newMessage(api.RoleUser, text, kind, "")
}

// NewAssistantMessage builds a local assistant entry (a reply or an error notice).
func NewAssistantMessage(text string) Message {
	return newMessage(api.RoleAssistant, text, KindText, "")
}

// Header is the pinned logo entry.
func Header(title string) Message {
	return Message{
		ID:       nextID(),
		Role:     api.RoleSystem,
		Raw:      title,
		Display:  title,
		Kind:     KindText,
		Position: PositionCenter,
		Pinned:   PinHeader,
	}
}

// Greeting is the pinned welcome entry shown when there is no history.
func Greeting(text string) Message {
	return Message{
		ID:       nextID(),
		Role:     api.RoleAssistant,
		Raw:      text,
		Display:  text,
		Kind:     KindText,
		Position: PositionCenter,
		Pinned:   PinGreeting,
	}
}
