package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemStore_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	rec := Record{Key: "K", ActorID: "a1", ExpiresAt: time.Now().Add(time.Hour)}
	ok, err := store.PutIfAbsent(ctx, rec)
	if err != nil || !ok {
		t.Fatalf("expected first put to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = store.PutIfAbsent(ctx, rec)
	if err != nil || ok {
		t.Fatalf("expected second put for same key to be rejected, ok=%v err=%v", ok, err)
	}

	got, found, err := store.Get(ctx, "K")
	if err != nil || !found || got.ActorID != "a1" {
		t.Fatalf("expected cached record, found=%v err=%v", found, err)
	}
}

func TestMemStore_ExpiredRecordIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	_, _ = store.PutIfAbsent(ctx, Record{Key: "K", ExpiresAt: time.Now().Add(-time.Second)})

	_, found, err := store.Get(ctx, "K")
	if err != nil || found {
		t.Fatalf("expected expired record to be absent, found=%v err=%v", found, err)
	}

	ok, err := store.PutIfAbsent(ctx, Record{Key: "K", ExpiresAt: time.Now().Add(time.Hour)})
	if err != nil || !ok {
		t.Fatalf("expected re-put after expiry to succeed, ok=%v err=%v", ok, err)
	}
}

func TestRedisStore_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "test")

	rec := Record{Key: "K", ActorID: "a1", ExpiresAt: time.Now().Add(time.Hour)}
	ok, err := store.PutIfAbsent(ctx, rec)
	if err != nil || !ok {
		t.Fatalf("expected first put to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = store.PutIfAbsent(ctx, rec)
	if err != nil || ok {
		t.Fatalf("expected second put to be rejected, ok=%v err=%v", ok, err)
	}
}
