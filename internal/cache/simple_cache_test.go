package cache

import (
	"sync"
	"testing"
	"time"
)

// frozenCache returns a cache whose clock only moves when *base is changed.
func frozenCache[V any]() (*SimpleCache[string, V], *time.Time) {
	base := time.Now()
	c := NewSimpleCache[string, V](Options{Now: func() time.Time { return base }})
	return c, &base
}

func TestSimpleCache_SetGet_NoTTL(t *testing.T) {
	c := NewSimpleCache[string, int](Options{})
	c.Set("a", 1, 0)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit with value 1, got ok=%v v=%v", ok, v)
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", c.Len())
	}
}

func TestSimpleCache_TTL_Expiry(t *testing.T) {
	c, base := frozenCache[string]()

	c.Set("k", "v", time.Second)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected hit before expiry")
	}

	// exactly at the deadline is still live
	*base = base.Add(time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected hit at expiry boundary")
	}

	*base = base.Add(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected Len=0 after expiry, got %d", c.Len())
	}
}

func TestSimpleCache_SetOverwritesExpired(t *testing.T) {
	c, base := frozenCache[string]()

	c.Set("k", "old", time.Second)
	*base = base.Add(time.Minute)
	c.Set("k", "new", time.Second)
	if v, ok := c.Get("k"); !ok || v != "new" {
		t.Fatalf("expected fresh value after overwrite, got ok=%v v=%q", ok, v)
	}
}

func TestSimpleCache_Range(t *testing.T) {
	c, base := frozenCache[int]()

	c.Set("stale", 1, time.Second)
	*base = base.Add(time.Minute)
	c.Set("a", 2, time.Second)
	c.Set("b", 3, time.Second)

	seen := map[string]int{}
	c.Range(func(k string, v int, storedAt time.Time) bool {
		if !storedAt.Equal(*base) {
			t.Fatalf("unexpected storedAt for %s: %v", k, storedAt)
		}
		seen[k] = v
		return true
	})
	if len(seen) != 2 || seen["a"] != 2 || seen["b"] != 3 {
		t.Fatalf("unexpected range result: %v", seen)
	}

	calls := 0
	c.Range(func(string, int, time.Time) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("expected Range to stop after first entry, got %d calls", calls)
	}
}

func TestSimpleCache_Concurrent(t *testing.T) {
	keys := 100
	rounds := 200

	c := NewSimpleCache[int, int](Options{})
	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				c.Set(i, r, time.Hour)
				_, _ = c.Get(i)
				_ = c.Len()
			}
		}()
	}
	wg.Wait()
	for i := 0; i < keys; i++ {
		if v, ok := c.Get(i); !ok || v != rounds-1 {
			t.Fatalf("expected last write for key %d, got ok=%v v=%d", i, ok, v)
		}
	}
}
