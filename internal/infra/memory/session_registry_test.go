package memory

import (
	"context"
	"testing"
	"time"

	"mocktest-service/internal/app"
	"mocktest-service/internal/domain"
)

func TestSessionRegistryLifecycle(t *testing.T) {
	registry := NewSessionRegistry()

	session := openSession(t, "u1")
	if got := registry.Put(session); got != session {
		t.Fatalf("expected session stored")
	}
	if _, ok := registry.Get(session.Key()); !ok {
		t.Fatalf("expected session present")
	}

	other := openSession(t, "u1")
	if got := registry.Put(other); got != session {
		t.Fatalf("expected existing session to win")
	}
	registry.Delete(other)
	if registry.Len() != 1 {
		t.Fatalf("deleting a stale session must not evict the live one")
	}

	registry.Touch(context.Background(), session)
	registry.Delete(session)
	if _, ok := registry.Get(session.Key()); ok {
		t.Fatalf("expected session removed")
	}
}

// openSession opens a session through its own service so each call yields a
// distinct session under the same key.
func openSession(t *testing.T, userID string) *app.Session {
	t.Helper()
	service := app.NewAttemptService(app.Dependencies{
		Tests:     NewTestRepository(NewStaticTestLoader(map[string]domain.TestDefinition{"test-1": sampleTest()}), time.Minute),
		Snapshots: NewSnapshotStore(),
		Attempts:  NewAttemptStore(),
		Sessions:  NewSessionRegistry(),
	}, app.Config{})
	session, err := service.Open(context.Background(), userID, "Alice", "test-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return session
}
