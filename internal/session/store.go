// Package session keeps the bounded, in-memory turn history of each
// conversation. History is process-local and lost on restart.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
)

const (
	summaryTurns     = 6
	summaryPrefixLen = 50
)

// Store holds one turn ring per session key. The map lock only guards
// lookup and insertion; each session serializes its own mutations.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*turnRing
	capacity int
	now      func() time.Time
}

// NewStore creates an empty store with the default turn cap.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*turnRing),
		capacity: MaxTurns,
		now:      time.Now,
	}
}

func (s *Store) ring(key string, create bool) *turnRing {
	s.mu.RLock()
	r, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok || !create {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok = s.sessions[key]; ok {
		return r
	}
	r = newTurnRing(s.capacity)
	s.sessions[key] = r
	return r
}

// Record appends the user turn followed by the assistant turn, evicting the
// oldest turns once the cap is exceeded.
func (s *Store) Record(key, userText, assistantText string) {
	now := s.now()
	user := domain.NewTurn(domain.RoleUser, userText, now)
	assistant := domain.NewTurn(domain.RoleAssistant, assistantText, now)

	// A concurrent Clear can drop the ring between lookup and append.
	for !s.ring(key, true).appendTurns(user, assistant) {
		s.mu.Lock()
		if r, ok := s.sessions[key]; ok && r.isDropped() {
			delete(s.sessions, key)
		}
		s.mu.Unlock()
	}
}

// Read returns the most recent exchanges*2 turns for key, oldest first.
// Unknown sessions yield an empty slice.
func (s *Store) Read(key string, exchanges int) []domain.Turn {
	r := s.ring(key, false)
	if r == nil {
		return []domain.Turn{}
	}
	return r.last(exchanges * 2)
}

// Summarize renders the last three exchanges as one labelled line per turn.
func (s *Store) Summarize(key string) string {
	turns := s.Read(key, summaryTurns/2)
	if len(turns) == 0 {
		return ""
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		prefix := truncateRunes(t.Content, summaryPrefixLen)
		if t.Role == domain.RoleUser {
			lines = append(lines, fmt.Sprintf("User asked about: %s...", prefix))
		} else {
			lines = append(lines, fmt.Sprintf("Bot provided information about: %s...", prefix))
		}
	}
	return strings.Join(lines, "\n")
}

// Clear removes the session. Clearing an unknown session is a no-op.
func (s *Store) Clear(key string) {
	s.mu.Lock()
	r, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		r.drop()
	}
}

// Len returns the number of turns retained for key.
func (s *Store) Len(key string) int {
	r := s.ring(key, false)
	if r == nil {
		return 0
	}
	return r.len()
}

// Count returns the number of active sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
