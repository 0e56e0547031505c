package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniredisStore(t *testing.T, prefix string) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisConfig{Address: s.Addr()})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	store := NewRedisStore(client, prefix)
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisClient_EmptyAddress(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), RedisConfig{}); !errors.Is(err, ErrEmptyAddress) {
		t.Errorf("err = %v, want ErrEmptyAddress", err)
	}
}

func TestRedisStore_GetSet(t *testing.T) {
	store, s := newMiniredisStore(t, "ti:")
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get(missing) err = %v, want ErrMiss", err)
	}

	if err := store.Set(ctx, "k", []byte(`{"a":1}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !s.Exists("ti:k") {
		t.Error("key not written under prefix")
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Get = %s", got)
	}

	s.FastForward(time.Minute)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after TTL err = %v, want ErrMiss", err)
	}
}

func TestRedisStore_ClearKeepsForeignKeys(t *testing.T) {
	store, s := newMiniredisStore(t, "ti:")
	ctx := context.Background()

	for i := 0; i < scanBatch+5; i++ {
		if err := store.Set(ctx, fmt.Sprintf("k%d", i), []byte("1"), time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Set("other:key", "keep"); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "other:key" {
		t.Errorf("keys after Clear = %v", keys)
	}
}

func TestRedisStore_WithGetOrCompute(t *testing.T) {
	store, s := newMiniredisStore(t, "")
	c := New(store, nil)
	ctx := context.Background()

	calls := 0
	compute := counting(&calls, payload{Summary: []string{"x"}}, nil)

	if _, hit, err := GetOrCompute(ctx, c, "k", time.Hour, compute); err != nil || hit {
		t.Fatalf("first: hit=%v err=%v", hit, err)
	}
	if _, hit, err := GetOrCompute(ctx, c, "k", time.Hour, compute); err != nil || !hit {
		t.Fatalf("second: hit=%v err=%v", hit, err)
	}

	s.FastForward(time.Hour)
	if _, hit, _ := GetOrCompute(ctx, c, "k", time.Hour, compute); hit {
		t.Error("hit after TTL")
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
}

func TestRedisStore_BackendDown(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	s.Close()

	c := New(NewRedisStore(client, ""), nil)
	calls := 0
	_, _, err = GetOrCompute(context.Background(), c, "k", time.Hour, counting(&calls, payload{}, nil))
	if err == nil {
		t.Fatal("expected error with backend down")
	}
	if errors.Is(err, ErrMiss) {
		t.Error("backend failure reported as a miss")
	}
	if calls != 0 {
		t.Error("compute ran with backend down")
	}
}
