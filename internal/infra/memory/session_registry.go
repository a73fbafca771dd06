package memory

import (
	"context"
	"sync"

	"mocktest-service/internal/app"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*app.Session),
	}
}

func (r *SessionRegistry) Put(session *app.Session) *app.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[session.Key()]; ok {
		return existing
	}
	r.sessions[session.Key()] = session
	return session
}

func (r *SessionRegistry) Get(key string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[key]
	return session, ok
}

func (r *SessionRegistry) Delete(session *app.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[session.Key()]; ok && existing == session {
		delete(r.sessions, session.Key())
	}
}

// Touch is a no-op; liveness is the map entry itself.
func (r *SessionRegistry) Touch(context.Context, *app.Session) {}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
