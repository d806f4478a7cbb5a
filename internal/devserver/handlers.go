package devserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/curios-os/curios/internal/tuilog"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type sessionResponse struct {
	OK                 bool    `json:"ok"`
	SessionID          string  `json:"sessionId"`
	State              string  `json:"state"`
	ChatType           string  `json:"chatType"`
	User               *User   `json:"user"`
	ProviderConfigured bool    `json:"providerConfigured"`
	SelectedProvider   *string `json:"selectedProvider"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	ChatType  string `json:"chatType"`
	Reply     string `json:"reply"`
}

type messageJSON struct {
	Role          string `json:"role"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
	DataInputType string `json:"dataInputType"`
}

type pageInfoJSON struct {
	OldestCursor  *string `json:"oldestCursor"`
	NewestCursor  *string `json:"newestCursor"`
	HasMoreBefore bool    `json:"hasMoreBefore"`
}

type messagesResponse struct {
	Messages []messageJSON `json:"messages"`
	PageInfo pageInfoJSON  `json:"pageInfo"`
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// resolveUser links or unlinks the token user. A new token is linked only
// after LinkDelay lookups. Caller holds s.mu.
func (s *Server) resolveUser(sd *sessionData, token string) {
	if token == "" {
		if sd.userFromToken {
			sd.user = nil
			sd.userFromToken = false
		}
		return
	}
	u, ok := s.config.Tokens[token]
	if !ok {
		return
	}
	if sd.user != nil && sd.user.ID == u.ID {
		return
	}
	if sd.tokenSeen[token] < s.config.LinkDelay {
		sd.tokenSeen[token]++
		return
	}
	user := u
	sd.user = &user
	sd.userFromToken = true
	if sd.state == StateWelcome || sd.state == StateAwaitingEmail || sd.state == StateAwaitingPassword {
		sd.state = StateNeedsProvider
		sd.chatType = chatText
	}
}

func (sd *sessionData) describe() sessionResponse {
	resp := sessionResponse{
		OK:                 true,
		SessionID:          sd.id,
		State:              sd.state,
		ChatType:           sd.chatType,
		User:               sd.user,
		ProviderConfigured: sd.provider != "",
	}
	if sd.provider != "" {
		p := sd.provider
		resp.SelectedProvider = &p
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.SessionCount()})
}

// SessionCount reports how many sessions the server holds.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sd := s.session(r.Header.Get("X-Session-Id"))
	s.resolveUser(sd, bearerToken(r))
	resp := sd.describe()
	s.mu.Unlock()

	tuilog.Log.Debug("Dev backend session", "session", resp.SessionID, "state", resp.State, "hint", r.Header.Get("X-Curios-User"))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("X-Session-Id")
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}
	if c := r.Header.Get("X-Curios-Context"); c != "" && c != "system" {
		writeError(w, http.StatusBadRequest, "unsupported_context", "context "+c+" is not available")
		return
	}

	s.mu.Lock()
	sd := s.session(r.Header.Get("X-Session-Id"))
	s.resolveUser(sd, bearerToken(r))
	now := s.now()
	t := s.advance(sd, req.Message)
	content := req.Message
	if t.userKind == chatSecret {
		content = redacted
	}
	sd.append(now, "user", content, t.userKind)
	sd.append(now.Add(time.Millisecond), "assistant", t.reply, chatText)
	resp := chatResponse{SessionID: sd.id, State: sd.state, ChatType: sd.chatType, Reply: t.reply}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	q := pageQuery{limit: defaultLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		q.limit = min(n, maxLimit)
	}
	for name, dst := range map[string]*int64{"before": &q.before, "after": &q.after} {
		if v := r.URL.Query().Get(name); v != "" {
			seq, ok := decodeCursor(v)
			if !ok {
				writeError(w, http.StatusBadRequest, "bad_request", "invalid "+name+" cursor")
				return
			}
			*dst = seq
		}
	}

	s.mu.Lock()
	sd := s.session(r.Header.Get("X-Session-Id"))
	msgs, more := sd.page(q)
	newest := sd.newestSeq()
	s.mu.Unlock()

	resp := messagesResponse{Messages: make([]messageJSON, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageJSON{
			Role:          m.role,
			Content:       m.content,
			CreatedAt:     m.createdAt.Format(time.RFC3339Nano),
			DataInputType: m.kind,
		})
	}
	resp.PageInfo.HasMoreBefore = more
	if len(msgs) > 0 {
		oldest := encodeCursor(msgs[0].seq)
		latest := encodeCursor(msgs[len(msgs)-1].seq)
		resp.PageInfo.OldestCursor = &oldest
		resp.PageInfo.NewestCursor = &latest
	} else if newest > 0 {
		// Report the high-water mark even for an empty page.
		latest := encodeCursor(newest)
		resp.PageInfo.NewestCursor = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}
