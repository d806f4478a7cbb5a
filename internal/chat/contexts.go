package chat

import (
	"errors"
	"fmt"
)

// DefaultContext is the context selected at startup.
const DefaultContext = "system"

// ContextItem is a conversation context the user can pick.
type ContextItem struct {
	ID          string
	Label       string
	Description string
	Enabled     bool
}

// Contexts lists every context in display order.
var Contexts = []ContextItem{
	{ID: "system", Label: "System", Description: "Onboarding, account and AI providers", Enabled: true},
	{ID: "browser", Label: "Browser", Description: "Current page: read, summarize, save"},
	{ID: "files", Label: "Files", Description: "Workspace and files"},
	{ID: "notes", Label: "Notes", Description: "Knowledge base"},
}

var (
	ErrUnknownContext  = errors.New("unknown context")
	ErrContextDisabled = errors.New("context is not available yet")
)

// LookupContext finds a context by id.
func LookupContext(id string) (ContextItem, bool) {
	for _, c := range Contexts {
		if c.ID == id {
			return c, true
		}
	}
	return ContextItem{}, false
}

// ValidateContext returns an error unless id names an enabled context.
func ValidateContext(id string) error {
	c, ok := LookupContext(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownContext, id)
	}
	if !c.Enabled {
		return fmt.Errorf("%w: %s", ErrContextDisabled, c.Label)
	}
	return nil
}

// SetContext switches the context sent with chat turns.
func (e *Engine) SetContext(id string) error {
	if err := ValidateContext(id); err != nil {
		return err
	}
	e.update(func(s *State) Change {
		if s.ActiveContext == id {
			return ChangeNone
		}
		s.ActiveContext = id
		return ChangeStatus
	})
	return nil
}
