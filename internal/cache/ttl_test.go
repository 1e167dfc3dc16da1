package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTTL_GetMissing(t *testing.T) {
	c := New[string]()

	if v, ok := c.Get("weather"); ok {
		t.Errorf("Get() = %q, true; want absent", v)
	}
}

func TestTTL_SetThenGet(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithClock(clock.Now))

	c.Set("weather", `{"temp":12}`, time.Minute)

	v, ok := c.Get("weather")
	if !ok {
		t.Fatal("Get() absent, want present")
	}
	if v != `{"temp":12}` {
		t.Errorf("Get() = %q, want %q", v, `{"temp":12}`)
	}
}

// TestTTL_ExpiryBoundary verifies an entry is visible just before expiry and
// gone at the exact expiry instant.
func TestTTL_ExpiryBoundary(t *testing.T) {
	clock := newFakeClock()
	c := New[int](WithClock(clock.Now))

	c.Set("transit", 1, 90*time.Second)

	clock.Advance(90*time.Second - time.Nanosecond)
	if _, ok := c.Get("transit"); !ok {
		t.Fatal("Get() at ttl-ε absent, want present")
	}

	clock.Advance(time.Nanosecond)
	if _, ok := c.Get("transit"); ok {
		t.Fatal("Get() at ttl present, want absent")
	}
}

// TestTTL_LazyEviction verifies expired entries are removed by the read that
// observes them, not before.
func TestTTL_LazyEviction(t *testing.T) {
	clock := newFakeClock()
	c := New[int](WithClock(clock.Now))

	c.Set("a", 1, time.Second)
	clock.Advance(2 * time.Second)

	if c.Len() != 1 {
		t.Fatalf("Len() before read = %d, want 1", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() expired entry present")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after read = %d, want 0", c.Len())
	}
}

func TestTTL_SetOverwrites(t *testing.T) {
	clock := newFakeClock()
	c := New[int](WithClock(clock.Now))

	c.Set("a", 1, time.Second)
	clock.Advance(500 * time.Millisecond)
	c.Set("a", 2, time.Second)

	e, ok := c.Entry("a")
	if !ok {
		t.Fatal("Entry() absent")
	}
	if e.Value != 2 {
		t.Errorf("Entry().Value = %d, want 2", e.Value)
	}
	if !e.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("Entry().UpdatedAt = %v, want %v", e.UpdatedAt, clock.Now())
	}
	if want := clock.Now().Add(time.Second); !e.ExpiresAt.Equal(want) {
		t.Errorf("Entry().ExpiresAt = %v, want %v", e.ExpiresAt, want)
	}
}

// TestTTL_UpdatedAtIgnoresExpiry verifies UpdatedAt reports the write time of
// an expired entry that has not been read yet.
func TestTTL_UpdatedAtIgnoresExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New[int](WithClock(clock.Now))

	written := clock.Now()
	c.Set("a", 1, time.Second)
	clock.Advance(time.Hour)

	at, ok := c.UpdatedAt("a")
	if !ok {
		t.Fatal("UpdatedAt() absent, want present")
	}
	if !at.Equal(written) {
		t.Errorf("UpdatedAt() = %v, want %v", at, written)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (UpdatedAt must not evict)", c.Len())
	}

	if _, ok := c.UpdatedAt("missing"); ok {
		t.Error("UpdatedAt(missing) present")
	}
}

func TestTTL_Restore(t *testing.T) {
	clock := newFakeClock()
	c := New[string](WithClock(clock.Now))

	updated := clock.Now().Add(-30 * time.Second)
	if !c.Restore("a", "old", updated, clock.Now().Add(30*time.Second)) {
		t.Fatal("Restore() = false, want true")
	}
	e, ok := c.Entry("a")
	if !ok || e.Value != "old" || !e.UpdatedAt.Equal(updated) {
		t.Errorf("Entry() = %+v, %v", e, ok)
	}

	if c.Restore("b", "stale", updated, clock.Now()) {
		t.Error("Restore() of expired entry = true, want false")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) present after rejected restore")
	}
}

func TestTTL_Delete(t *testing.T) {
	c := New[int]()
	c.Set("a", 1, time.Minute)
	c.Delete("a")
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Error("Get() present after Delete")
	}
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("panel-%d", n%4)
			for j := 0; j < 100; j++ {
				c.Set(key, j, time.Millisecond*time.Duration(j%3))
				c.Get(key)
				c.UpdatedAt(key)
			}
		}(i)
	}
	wg.Wait()
}
