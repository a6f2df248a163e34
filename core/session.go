package core

import (
	"sync"
	"time"
)

// Session is the conversational transcript: an append-only, chronologically
// ordered sequence of events owned by a single interactive session. It is
// safe for concurrent access.
//
// Contract:
//   - AddEvent only appends; events are never reordered or removed
//   - Events returns a defensive copy
//   - History filters to user/assistant/tool roles and drops partial
//     streaming fragments, yielding exactly what is replayed to the model
type Session struct {
	ID      string    `json:"id"`
	Events  []Event   `json:"events"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Events: []Event{}, Created: now, Updated: now}
}

// AddEvent appends an event to the transcript.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// GetEvents returns a copy of the full event slice so callers cannot mutate
// internal state.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// History returns the events replayed as model context: conversational roles
// only, partials excluded, original order preserved.
func (s *Session) History() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := map[string]bool{"user": true, "assistant": true, "tool": true}
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || !allowed[ev.Content.Role] {
			continue
		}
		if ev.IsPartial() {
			continue
		}
		res = append(res, ev)
	}
	return res
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Events: make([]Event, len(s.Events)), Created: s.Created, Updated: s.Updated}
	copy(clone.Events, s.Events)
	return clone
}

// SessionStore persists sessions and their evolving transcripts.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
}
