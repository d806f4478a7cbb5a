// Package api is the HTTP client for the CuriOS backend: session
// description, chat turns and paginated message history.
package api

// Chat types declared by the backend for a turn or a stored message.
const (
	ChatTypeText   = "text"
	ChatTypeSecret = "secret"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultPageSize is the number of messages requested per history page.
const DefaultPageSize = 50

// User is the identity the backend has linked to a session.
type User struct {
	ID    string `json:"userId"`
	Email string `json:"email,omitempty"`
}

// Label returns the value sent as the user hint: the email, else the id.
func (u *User) Label() string {
	if u == nil {
		return ""
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Session is the normalized response of GET /session.
type Session struct {
	OK                 bool   `json:"ok"`
	SessionID          string `json:"sessionId"`
	State              string `json:"state"`
	ChatType           string `json:"chatType"`
	User               *User  `json:"user"`
	ProviderConfigured bool   `json:"providerConfigured"`
	SelectedProvider   string `json:"selectedProvider,omitempty"`
}

// Masking reports whether the next user turn must be masked.
func (s *Session) Masking() bool { return s != nil && s.ChatType == ChatTypeSecret }

// ChatReply is the normalized response of POST /chat.
type ChatReply struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	ChatType  string `json:"chatType"`
	Reply     string `json:"reply"`
}

// ServerMessage is one stored message from GET /messages.
type ServerMessage struct {
	Role          string `json:"role"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
	DataInputType string `json:"dataInputType"`
}

// PageInfo bounds a history page. Cursors are opaque and nil when the
// server did not supply one.
type PageInfo struct {
	OldestCursor  *string `json:"oldestCursor"`
	NewestCursor  *string `json:"newestCursor"`
	HasMoreBefore bool    `json:"hasMoreBefore"`
}

// MessagesPage is the normalized response of GET /messages.
type MessagesPage struct {
	Messages []ServerMessage `json:"messages"`
	PageInfo PageInfo        `json:"pageInfo"`
}

// PageQuery selects a history page. Empty cursors are omitted.
type PageQuery struct {
	Limit  int
	Before string
	After  string
}

// RequestMeta carries the per-request headers shared by every endpoint.
type RequestMeta struct {
	SessionID   string // X-Session-Id
	UserHint    string // X-Curios-User
	AccessToken string // Authorization: Bearer
	Context     string // X-Curios-Context, chat only
}
