package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"mocktest-service/internal/app"
)

// SessionRegistry is a Redis-aware implementation of app.SessionRegistry.
// Notes:
//   - Sessions stay in a local map; the timer and broadcast logic run in-process.
//   - Redis holds a liveness marker per session so operators (and other
//     instances) can see which attempts are currently open. The marker is
//     refreshed on every snapshot write, so ttl only needs to outlast the
//     persist interval.
type SessionRegistry struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		client:   client,
		ttl:      ttl,
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
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(session.Key()), session.UserID(), r.ttl).Err()
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
	existing, ok := r.sessions[session.Key()]
	if !ok || existing != session {
		return
	}
	delete(r.sessions, session.Key())
	_ = r.client.Del(context.Background(), r.key(session.Key())).Err()
}

// Touch refreshes the liveness marker of a registered session.
func (r *SessionRegistry) Touch(ctx context.Context, session *app.Session) {
	if _, ok := r.Get(session.Key()); !ok {
		return
	}
	_ = r.client.Set(ctx, r.key(session.Key()), session.UserID(), r.ttl).Err()
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) key(key string) string {
	return "attempt:live:" + key
}
