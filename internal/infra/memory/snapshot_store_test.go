package memory

import (
	"context"
	"testing"
)

func TestSnapshotStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore()

	if _, ok, err := store.Load(ctx, "u1/attempt_t1"); ok || err != nil {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, "u1/attempt_t1", []byte(`{"testId":"t1"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, ok, err := store.Load(ctx, "u1/attempt_t1")
	if err != nil || !ok || string(data) != `{"testId":"t1"}` {
		t.Fatalf("unexpected load %q ok=%v err=%v", data, ok, err)
	}
	if _, ok, _ := store.Load(ctx, "u1/attempt_t2"); ok {
		t.Fatalf("keys must not collide across tests")
	}
	if err := store.Delete(ctx, "u1/attempt_t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "u1/attempt_t1"); ok {
		t.Fatalf("expected snapshot removed")
	}
}
