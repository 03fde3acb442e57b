// Package conversation holds the per-session conversation log and form
// state. It is the single source of truth shared by the turn pipeline and
// the client protocol.
package conversation

import (
	"sync"

	"github.com/vozcredit/voz-gateway/pkg/core/form"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DefaultMaxHistory bounds the context sent to the dialogue service.
const DefaultMaxHistory = 18

// Store is a bounded ordered conversation log plus the current field set.
// All methods are safe for concurrent use; the turn pipeline's at-most-one
// discipline is what keeps merges from interleaving, the mutex only guards
// reads from the protocol layer racing a turn commit.
type Store struct {
	mu         sync.Mutex
	messages   []Message
	fields     form.Fields
	maxHistory int
}

// NewStore creates an empty store with the given history cap. A cap <= 0
// falls back to DefaultMaxHistory.
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{maxHistory: maxHistory}
}

// Append adds a message, dropping the oldest entries beyond the cap.
func (s *Store) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: role, Content: content})
	if len(s.messages) > s.maxHistory {
		s.messages = s.messages[len(s.messages)-s.maxHistory:]
	}
}

// History returns a copy of the current log, oldest first.
func (s *Store) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Fields returns a copy of the current field set.
func (s *Store) Fields() form.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields.Clone()
}

// MergeFields applies a partial field set; present values overwrite, absent
// values leave existing slots untouched.
func (s *Store) MergeFields(partial form.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields.Merge(partial)
}

// SetField stores a single slot value (the direct-edit path from the UI).
func (s *Store) SetField(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields.Set(key, value)
}

// Complete reports whether all slots are filled.
func (s *Store) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields.Complete()
}

// Reset clears history and fields atomically. Used when a session (re)opens.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.fields = form.Fields{}
}
