package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStorage(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	storage := NewRedisStorageWithClient(client, ttl)
	t.Cleanup(func() { storage.Close() })
	return storage, mr
}

func TestRedisStorageRoundTrip(t *testing.T) {
	storage, mr := newRedisStorage(t, time.Hour)
	ctx := context.Background()

	if err := storage.Put(ctx, "compose:post:42", []byte(`{"doc":null}`)); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("draft:compose:post:42") {
		t.Fatal("payload not stored under the draft prefix")
	}

	payload, err := storage.Get(ctx, "compose:post:42")
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != `{"doc":null}` {
		t.Fatalf("payload = %s", payload)
	}

	if err := storage.Delete(ctx, "compose:post:42"); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.Get(ctx, "compose:post:42"); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("get after delete = %v, want ErrNoDraft", err)
	}
}

func TestRedisStorageMissing(t *testing.T) {
	storage, _ := newRedisStorage(t, time.Hour)
	if _, err := storage.Get(context.Background(), "nope"); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("get = %v, want ErrNoDraft", err)
	}
}

func TestRedisStorageTTL(t *testing.T) {
	storage, mr := newRedisStorage(t, time.Hour)
	ctx := context.Background()

	if err := storage.Put(ctx, "compose:post:7", []byte("x")); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := storage.Get(ctx, "compose:post:7"); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("get after ttl = %v, want ErrNoDraft", err)
	}
}

func TestRedisStorageDefaultTTL(t *testing.T) {
	storage, _ := newRedisStorage(t, 0)
	if storage.ttl != DefaultTTL {
		t.Fatalf("ttl = %v, want default", storage.ttl)
	}
}
