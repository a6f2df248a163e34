// Package session provides transcript storage. The in-memory store is the
// only implementation: transcripts live for the duration of the process and
// are cleared when it exits, matching the single interactive session model.
package session

import (
	"sync"

	"github.com/loupehq/loupe/core"
)

// InMemoryStore is a volatile SessionStore holding sessions in a process
// local map. Safe for concurrent access; returned sessions are clones so
// callers cannot mutate internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Get returns a clone of an existing session, creating it lazily if absent.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone(), nil
	}
	return s.createLocked(sessionID).Clone(), nil
}

// Create forces creation (or reset) of a session with the given id.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(sessionID).Clone(), nil
}

// AppendEvent adds an event to an existing or newly created session.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = s.createLocked(sessionID)
	}
	sess.AddEvent(ev)
	return nil
}

// createLocked allocates and stores a new session; caller holds the lock.
func (s *InMemoryStore) createLocked(sessionID string) *core.Session {
	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	return sess
}
