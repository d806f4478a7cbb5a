package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Aliases lists, per canonical field, every key the backend is known to use
// for it. Lookups try the keys in order and take the first one present.
var Aliases = map[string][]string{
	// GET /session
	"ok":                 {"ok", "success"},
	"sessionId":          {"sessionId", "session_id", "sessionID", "SessionId"},
	"state":              {"state", "sessionState", "session_state"},
	"chatType":           {"chatType", "chat_type", "dataInputType", "data_input_type"},
	"user":               {"user", "sessionUser", "session_user"},
	"userId":             {"userId", "user_id", "userID", "id"},
	"email":              {"email", "userEmail", "user_email"},
	"providerConfigured": {"providerConfigured", "provider_configured", "isProviderConfigured", "is_provider_configured"},
	"selectedProvider":   {"selectedProvider", "selected_provider", "providerId", "provider_id", "provider"},

	// POST /chat
	"reply": {"reply", "response", "answer"},

	// GET /messages
	"messages":      {"messages", "items"},
	"pageInfo":      {"pageInfo", "page_info"},
	"role":          {"role"},
	"content":       {"content", "text"},
	"createdAt":     {"created_at", "createdAt"},
	"dataInputType": {"dataInputType", "data_input_type", "chatType", "chat_type", "type"},
	"oldestCursor":  {"oldestCursor", "oldest_cursor"},
	"newestCursor":  {"newestCursor", "newest_cursor"},
	"hasMoreBefore": {"hasMoreBefore", "has_more_before", "hasMore", "has_more"},
}

// fields is a decoded JSON object queried through Aliases.
type fields map[string]any

func decodeObject(body []byte) (fields, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	return fields(obj), nil
}

func (f fields) lookup(canonical string) (any, bool) {
	for _, key := range Aliases[canonical] {
		if v, ok := f[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// str returns the field as a string. Numbers are formatted; null and other
// types count as absent.
func (f fields) str(canonical string) (string, bool) {
	v, ok := f.lookup(canonical)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func (f fields) boolean(canonical string) (value, present bool) {
	v, ok := f.lookup(canonical)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b, true
	case float64:
		return t != 0, true
	default:
		return false, true
	}
}

func (f fields) object(canonical string) fields {
	v, _ := f.lookup(canonical)
	if m, ok := v.(map[string]any); ok {
		return fields(m)
	}
	return nil
}

// cursor returns an opaque cursor, or nil when absent, null or empty.
func (f fields) cursor(canonical string) *string {
	s, ok := f.str(canonical)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// NormalizeChatType maps any declared classification onto text or secret.
func NormalizeChatType(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), ChatTypeSecret) {
		return ChatTypeSecret
	}
	return ChatTypeText
}

// NormalizeRole maps a role onto user, assistant or system. Unknown roles
// are shown as assistant output.
func NormalizeRole(v string) string {
	switch r := strings.ToLower(strings.TrimSpace(v)); r {
	case RoleUser, RoleAssistant, RoleSystem:
		return r
	default:
		return RoleAssistant
	}
}

// NormalizeSession decodes a GET /session body. The state field is
// required; ok=false yields ErrNotOK. Provider-configured is true when the
// flag is true or a selected provider is present.
func NormalizeSession(body []byte) (*Session, error) {
	f, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	ok, okPresent := f.boolean("ok")
	if okPresent && !ok {
		return nil, ErrNotOK
	}
	state, found := f.str("state")
	if !found {
		return nil, fmt.Errorf("%w: session response has no state", ErrMalformed)
	}

	s := &Session{OK: true, State: state}
	s.SessionID, _ = f.str("sessionId")
	chatType, _ := f.str("chatType")
	s.ChatType = NormalizeChatType(chatType)

	if provider, ok := f.str("selectedProvider"); ok {
		s.SelectedProvider = strings.TrimSpace(provider)
	}
	configured, _ := f.boolean("providerConfigured")
	s.ProviderConfigured = configured || s.SelectedProvider != ""

	if u := f.object("user"); u != nil {
		s.User = normalizeUser(u)
	} else if _, present := f.lookup("user"); !present {
		// Some deployments flatten the user onto the session object.
		flat := fields{}
		for _, key := range []string{"userId", "user_id", "userID", "email", "user_email"} {
			if v, ok := f[key]; ok {
				flat[key] = v
			}
		}
		s.User = normalizeUser(flat)
	}
	return s, nil
}

func normalizeUser(u fields) *User {
	id, _ := u.str("userId")
	email, _ := u.str("email")
	id, email = strings.TrimSpace(id), strings.TrimSpace(email)
	if id == "" && email == "" {
		return nil
	}
	return &User{ID: id, Email: email}
}

// NormalizeChatReply decodes a POST /chat body. The reply field is required.
func NormalizeChatReply(body []byte) (*ChatReply, error) {
	f, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	reply, found := f.str("reply")
	if !found {
		return nil, fmt.Errorf("%w: chat response has no reply", ErrMalformed)
	}
	r := &ChatReply{Reply: reply}
	r.SessionID, _ = f.str("sessionId")
	r.State, _ = f.str("state")
	chatType, _ := f.str("chatType")
	r.ChatType = NormalizeChatType(chatType)
	return r, nil
}

// NormalizeMessages decodes a GET /messages body. The messages array is
// required; a missing pageInfo means no cursors and no older history.
func NormalizeMessages(body []byte) (*MessagesPage, error) {
	f, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	raw, found := f.lookup("messages")
	if !found {
		return nil, fmt.Errorf("%w: messages response has no messages", ErrMalformed)
	}
	list, ok := raw.([]any)
	if !ok && raw != nil {
		return nil, fmt.Errorf("%w: messages is %T, not an array", ErrMalformed, raw)
	}

	page := &MessagesPage{Messages: make([]ServerMessage, 0, len(list))}
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: message %d is not an object", ErrMalformed, i)
		}
		m := fields(obj)
		role, _ := m.str("role")
		content, _ := m.str("content")
		createdAt, _ := m.str("createdAt")
		kind, _ := m.str("dataInputType")
		page.Messages = append(page.Messages, ServerMessage{
			Role:          NormalizeRole(role),
			Content:       content,
			CreatedAt:     createdAt,
			DataInputType: NormalizeChatType(kind),
		})
	}

	if info := f.object("pageInfo"); info != nil {
		page.PageInfo.OldestCursor = info.cursor("oldestCursor")
		page.PageInfo.NewestCursor = info.cursor("newestCursor")
		page.PageInfo.HasMoreBefore, _ = info.boolean("hasMoreBefore")
	}
	return page, nil
}
