package memory

import (
	"strings"
	"sync"
)

// maxEmotionalMemory caps the session emotional memory; oldest tags are
// evicted first.
const maxEmotionalMemory = 10

// Turn is one short-term conversation turn.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionContext is transient, process-lifetime conversational state for one
// conversation. It is never persisted.
type SessionContext struct {
	mu       sync.Mutex
	maxTurns int
	turns    []Turn
	emotions []string
}

// NewSessionContext creates a session context bounded to maxTurns turns.
func NewSessionContext(maxTurns int) *SessionContext {
	if maxTurns <= 0 {
		maxTurns = DefaultLimits().MaxShortTermTurns
	}
	return &SessionContext{maxTurns: maxTurns}
}

// AddTurn appends a {role, content} turn, evicting the oldest beyond the cap.
func (s *SessionContext) AddTurn(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Content: content})
	if len(s.turns) > s.maxTurns {
		s.turns = s.turns[len(s.turns)-s.maxTurns:]
	}
}

// RecentTurns returns up to k most recent turns, oldest-first.
func (s *SessionContext) RecentTurns(k int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns
	if k > 0 && len(turns) > k {
		turns = turns[len(turns)-k:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// AddEmotions records emotion tags derived from a recent message.
// Decay is eviction only: oldest tags drop first.
func (s *SessionContext) AddEmotions(tags []string) {
	if len(tags) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emotions = append(s.emotions, tags...)
	if len(s.emotions) > maxEmotionalMemory {
		s.emotions = s.emotions[len(s.emotions)-maxEmotionalMemory:]
	}
}

// EmotionalSummary renders the session emotional memory for prompt injection.
// Returns "" when no emotions were observed.
func (s *SessionContext) EmotionalSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.emotions) == 0 {
		return ""
	}
	return "Recently the user has sounded: " + strings.Join(s.emotions, ", ")
}
