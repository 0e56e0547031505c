package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.now
	return store, clock
}

type payload struct {
	Summary []string `json:"summary"`
	Error   string   `json:"error,omitempty"`
}

func counting(calls *int, v payload, err error) func(context.Context) (payload, error) {
	return func(context.Context) (payload, error) {
		*calls++
		return v, err
	}
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	store, _ := newTestMemoryStore()
	c := New(store, nil)
	ctx := context.Background()

	calls := 0
	compute := counting(&calls, payload{Summary: []string{"a"}}, nil)

	v, hit, err := GetOrCompute(ctx, c, "k", time.Hour, compute)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if hit {
		t.Error("first call reported hit")
	}
	if len(v.Summary) != 1 || v.Summary[0] != "a" {
		t.Errorf("unexpected value %+v", v)
	}

	v, hit, err = GetOrCompute(ctx, c, "k", time.Hour, compute)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !hit {
		t.Error("second call reported miss")
	}
	if v.Summary[0] != "a" {
		t.Errorf("cached value = %+v", v)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	if got := c.Stats(); got.Hits != 1 || got.Misses != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestGetOrCompute_ExpiresAfterTTL(t *testing.T) {
	store, clock := newTestMemoryStore()
	c := New(store, nil)
	ctx := context.Background()

	calls := 0
	compute := counting(&calls, payload{Summary: []string{"a"}}, nil)

	if _, _, err := GetOrCompute(ctx, c, "k", time.Minute, compute); err != nil {
		t.Fatal(err)
	}

	clock.advance(59 * time.Second)
	if _, hit, _ := GetOrCompute(ctx, c, "k", time.Minute, compute); !hit {
		t.Error("entry expired before its TTL")
	}

	clock.advance(time.Second)
	if _, hit, _ := GetOrCompute(ctx, c, "k", time.Minute, compute); hit {
		t.Error("entry served after its TTL")
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
}

func TestGetOrCompute_ErrorNotStored(t *testing.T) {
	store, _ := newTestMemoryStore()
	c := New(store, nil)
	ctx := context.Background()

	boom := errors.New("boom")
	calls := 0

	for i := 0; i < 2; i++ {
		_, hit, err := GetOrCompute(ctx, c, "k", time.Hour, counting(&calls, payload{}, boom))
		if !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
		if hit {
			t.Errorf("call %d reported hit", i)
		}
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d entries after failures", store.Len())
	}
}

func TestGetOrCompute_StoreIf(t *testing.T) {
	store, _ := newTestMemoryStore()
	c := New(store, nil)
	ctx := context.Background()

	keep := StoreIf(func(p payload) bool { return p.Error == "" })
	calls := 0
	compute := counting(&calls, payload{Error: "model refused"}, nil)

	for i := 0; i < 2; i++ {
		v, hit, err := GetOrCompute(ctx, c, "k", time.Hour, compute, keep)
		if err != nil {
			t.Fatal(err)
		}
		if hit {
			t.Error("suppressed value served from cache")
		}
		if v.Error != "model refused" {
			t.Errorf("value not returned to caller: %+v", v)
		}
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
}

type failingStore struct {
	getErr error
	setErr error
}

func (f failingStore) Get(context.Context, string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return nil, ErrMiss
}

func (f failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return f.setErr
}

func (f failingStore) Clear(context.Context) error { return nil }

func TestGetOrCompute_StoreFailures(t *testing.T) {
	down := errors.New("connection refused")
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		calls := 0
		c := New(failingStore{getErr: down}, nil)
		_, _, err := GetOrCompute(ctx, c, "k", time.Hour, counting(&calls, payload{}, nil))
		if !errors.Is(err, down) {
			t.Errorf("err = %v, want wrapped store error", err)
		}
		if calls != 0 {
			t.Error("compute ran despite lookup failure")
		}
	})

	t.Run("set", func(t *testing.T) {
		calls := 0
		c := New(failingStore{setErr: down}, nil)
		_, _, err := GetOrCompute(ctx, c, "k", time.Hour, counting(&calls, payload{}, nil))
		if !errors.Is(err, down) {
			t.Errorf("err = %v, want wrapped store error", err)
		}
	})
}

func TestGetOrCompute_UndecodableEntryRecomputed(t *testing.T) {
	store, _ := newTestMemoryStore()
	ctx := context.Background()
	if err := store.Set(ctx, "k", []byte("not json"), time.Hour); err != nil {
		t.Fatal(err)
	}

	c := New(store, nil)
	calls := 0
	v, hit, err := GetOrCompute(ctx, c, "k", time.Hour, counting(&calls, payload{Summary: []string{"fresh"}}, nil))
	if err != nil {
		t.Fatal(err)
	}
	if hit || calls != 1 || v.Summary[0] != "fresh" {
		t.Errorf("hit=%v calls=%d v=%+v", hit, calls, v)
	}
}

func TestCache_Clear(t *testing.T) {
	store, _ := newTestMemoryStore()
	c := New(store, nil)
	ctx := context.Background()

	calls := 0
	compute := counting(&calls, payload{Summary: []string{"a"}}, nil)
	for _, k := range []string{"a", "b"} {
		if _, _, err := GetOrCompute(ctx, c, k, time.Hour, compute); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d entries after Clear", store.Len())
	}
	if _, hit, _ := GetOrCompute(ctx, c, "a", time.Hour, compute); hit {
		t.Error("hit after Clear")
	}
}
