package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"mocktest-service/internal/app"
	"mocktest-service/internal/domain"
	"mocktest-service/internal/infra/memory"
)

func TestSessionRegistrySetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	registry := NewSessionRegistry(newClient(mr), time.Minute)
	session := openSession(t, memory.NewSessionRegistry())

	_ = registry.Put(session)
	if !mr.Exists("attempt:live:u1/attempt_test-1") {
		t.Fatalf("expected redis key to be set")
	}
	if registry.Len() != 1 {
		t.Fatalf("expected one live session")
	}

	registry.Delete(session)
	if mr.Exists("attempt:live:u1/attempt_test-1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSessionRegistryMarkerOutlivesTTLWhilePersisting(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	registry := NewSessionRegistry(newClient(mr), 10*time.Second)
	service := newService(registry)
	session, err := service.Open(ctx, "u1", "Alice", "test-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// An attempt far longer than the marker ttl stays marked while it persists.
	for i := 0; i < 10; i++ {
		mr.FastForward(6 * time.Second)
		service.Persist(ctx, session)
		if !mr.Exists("attempt:live:u1/attempt_test-1") {
			t.Fatalf("marker expired after %d persists", i+1)
		}
	}

	service.Leave(ctx, session)
	if mr.Exists("attempt:live:u1/attempt_test-1") {
		t.Fatalf("expected marker removed on leave")
	}
	// Touching a session that is no longer registered must not resurrect the marker.
	registry.Touch(ctx, session)
	if mr.Exists("attempt:live:u1/attempt_test-1") {
		t.Fatalf("touch must not mark an unregistered session")
	}
}

func newService(sessions app.SessionRegistry) *app.AttemptService {
	return app.NewAttemptService(app.Dependencies{
		Tests:     memory.NewTestRepository(memory.NewStaticTestLoader(map[string]domain.TestDefinition{"test-1": sampleTest()}), time.Minute),
		Snapshots: memory.NewSnapshotStore(),
		Attempts:  memory.NewAttemptStore(),
		Sessions:  sessions,
	}, app.Config{})
}

func openSession(t *testing.T, sessions app.SessionRegistry) *app.Session {
	t.Helper()
	session, err := newService(sessions).Open(context.Background(), "u1", "Alice", "test-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return session
}
