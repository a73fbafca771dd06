package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSnapshotStore(newClient(mr), time.Hour)

	if _, ok, err := store.Load(ctx, "u1/attempt_t1"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, "u1/attempt_t1", []byte(`{"testId":"t1"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("snapshot:u1/attempt_t1") {
		t.Fatalf("expected redis key")
	}
	data, ok, err := store.Load(ctx, "u1/attempt_t1")
	if err != nil || !ok || string(data) != `{"testId":"t1"}` {
		t.Fatalf("unexpected load %q ok=%v err=%v", data, ok, err)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok, _ := store.Load(ctx, "u1/attempt_t1"); ok {
		t.Fatalf("expected snapshot to expire")
	}

	_ = store.Save(ctx, "u1/attempt_t1", []byte(`{}`))
	if err := store.Delete(ctx, "u1/attempt_t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("snapshot:u1/attempt_t1") {
		t.Fatalf("expected redis key removed")
	}
}

func TestSnapshotStoreReportsErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	store := NewSnapshotStore(client, time.Hour)
	if err := store.Save(context.Background(), "k", []byte("x")); err == nil {
		t.Fatalf("expected save error with redis down")
	}
	if _, _, err := store.Load(context.Background(), "k"); err == nil {
		t.Fatalf("expected load error with redis down")
	}
}
