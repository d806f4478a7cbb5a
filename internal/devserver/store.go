package devserver

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a backend account.
type User struct {
	ID    string `json:"userId"`
	Email string `json:"email,omitempty"`
}

type storedMessage struct {
	seq       int64
	role      string
	content   string
	kind      string
	createdAt time.Time
}

type sessionData struct {
	id            string
	state         string
	chatType      string
	user          *User
	userFromToken bool
	provider      string
	pendingEmail  string
	messages      []storedMessage
	nextSeq       int64
	tokenSeen     map[string]int
}

func newSessionData(id string) *sessionData {
	return &sessionData{
		id:        id,
		state:     StateWelcome,
		chatType:  chatText,
		tokenSeen: make(map[string]int),
	}
}

// session returns the session for id, creating it when unknown. An empty
// id is replaced by a fresh one, which the client sees as a rotation.
// Caller holds s.mu.
func (s *Server) session(id string) *sessionData {
	if id == "" {
		id = uuid.NewString()
	}
	sd, ok := s.sessions[id]
	if !ok {
		sd = newSessionData(id)
		s.sessions[id] = sd
	}
	return sd
}

func (sd *sessionData) append(now time.Time, role, content, kind string) storedMessage {
	sd.nextSeq++
	m := storedMessage{seq: sd.nextSeq, role: role, content: content, kind: kind, createdAt: now.UTC()}
	sd.messages = append(sd.messages, m)
	return m
}

// Cursors are opaque to clients; here they encode the message sequence.
func encodeCursor(seq int64) string { return "m" + strconv.FormatInt(seq, 36) }

func decodeCursor(c string) (int64, bool) {
	if !strings.HasPrefix(c, "m") {
		return 0, false
	}
	n, err := strconv.ParseInt(c[1:], 36, 64)
	return n, err == nil
}

type pageQuery struct {
	limit  int
	before int64 // 0 = unbounded
	after  int64 // 0 = unbounded
}

// page selects messages oldest first. Without after, it returns the newest
// messages below before; with after, the oldest messages above it.
func (sd *sessionData) page(q pageQuery) ([]storedMessage, bool) {
	var candidates []storedMessage
	for _, m := range sd.messages {
		if q.before > 0 && m.seq >= q.before {
			continue
		}
		if q.after > 0 && m.seq <= q.after {
			continue
		}
		candidates = append(candidates, m)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq < candidates[j].seq })

	var out []storedMessage
	if q.after > 0 {
		out = candidates[:min(q.limit, len(candidates))]
	} else {
		out = candidates[max(0, len(candidates)-q.limit):]
	}

	hasMoreBefore := false
	if len(out) > 0 {
		first := out[0].seq
		for _, m := range sd.messages {
			if m.seq < first {
				hasMoreBefore = true
				break
			}
		}
	}
	return out, hasMoreBefore
}

func (sd *sessionData) newestSeq() int64 {
	if len(sd.messages) == 0 {
		return 0
	}
	return sd.messages[len(sd.messages)-1].seq
}
