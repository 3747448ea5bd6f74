// Package chat owns the conversation session and the turn orchestrator that
// sequences keyword dispatch, backend calls, and playback requests.
package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lumikit/go-companion/pkg/backend"
)

// DefaultMaxRounds is the rolling-reset limit in user/assistant turn pairs.
const DefaultMaxRounds = 10

// Session owns the ordered conversation history. The first message is
// always the injected persona message; once the history reaches
// 1 + 2*maxRounds messages the session is reset all-or-nothing (cleared and
// re-seeded), never partially truncated.
type Session struct {
	persona   string
	maxRounds int

	mu   sync.Mutex
	id   string
	msgs []backend.Message
}

// NewSession creates a session seeded with the persona system message.
func NewSession(persona string, maxRounds int) *Session {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	s := &Session{persona: persona, maxRounds: maxRounds}
	s.Reset()
	return s
}

// Reset clears the history and re-seeds the persona message under a fresh
// session ID.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.msgs = []backend.Message{{Role: backend.RoleSystem, Content: s.persona}}
}

// Append adds a message to the history.
func (s *Session) Append(role backend.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, backend.Message{Role: role, Content: content})
}

// Messages returns a snapshot of the history. Callers may read it freely;
// only the session mutates the underlying sequence.
func (s *Session) Messages() []backend.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len returns the current history length, persona message included.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// ID returns the current session ID. It changes on every reset.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Limit returns the history length at which the session resets.
func (s *Session) Limit() int {
	return 1 + 2*s.maxRounds
}

// AtLimit reports whether the history has reached the rolling-reset limit.
func (s *Session) AtLimit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs) >= 1+2*s.maxRounds
}
