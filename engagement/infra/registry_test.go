package infra

import (
	"testing"
	"time"
)

type counter struct{ closed bool }

func TestSessionRegistry_SameKeySameValue(t *testing.T) {
	created := 0
	r := NewSessionRegistry(func(key string) *counter {
		created++
		return &counter{}
	})

	a := r.Get("s1")
	b := r.Get("s1")
	if a != b || created != 1 {
		t.Fatalf("expected one value per key, created %d", created)
	}
	if r.Get("s2") == a {
		t.Fatalf("expected distinct value for another key")
	}
}

func TestSessionRegistry_StructKeys(t *testing.T) {
	type visitor struct{ session, device string }
	r := NewSessionRegistry(func(v visitor) string { return v.session + "/" + v.device })

	if got := r.Get(visitor{"s1", "d1"}); got != "s1/d1" {
		t.Fatalf("unexpected value %q", got)
	}
	if r.Get(visitor{"s1", "d2"}) == r.Get(visitor{"s1", "d1"}) {
		t.Fatalf("different devices must not share a value")
	}
}

func TestSessionRegistry_WriteBucketPerKey(t *testing.T) {
	r := NewSessionRegistry(func(string) int { return 0 }, WithWriteRate[string, int](0.01, 2))

	if !r.AllowWrite("s1") || !r.AllowWrite("s1") {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if r.AllowWrite("s1") {
		t.Fatalf("expected third immediate write to be throttled")
	}
	if !r.AllowWrite("s2") {
		t.Fatalf("another session has its own bucket")
	}
	if r.RPS() != 0.01 || r.Burst() != 2 {
		t.Fatalf("unexpected limits %v/%d", r.RPS(), r.Burst())
	}
}

func TestSessionRegistry_CleanupEvictsIdle(t *testing.T) {
	clk := newManualClock()
	var evicted []*counter
	r := NewSessionRegistry(func(string) *counter { return &counter{} },
		WithIdleTTL[string, *counter](time.Minute),
		WithCleanupEvery[string, *counter](0),
		WithRegistryClock[string, *counter](clk.now),
		WithOnEvict[string, *counter](func(c *counter) {
			c.closed = true
			evicted = append(evicted, c)
		}),
	)

	old := r.Get("idle")
	clk.advance(30 * time.Second)
	r.Get("active")
	clk.advance(45 * time.Second)

	r.Cleanup()
	if r.Len() != 1 || len(evicted) != 1 || !old.closed {
		t.Fatalf("expected only the idle session evicted, len=%d evicted=%d", r.Len(), len(evicted))
	}
	if r.Get("idle") == old {
		t.Fatalf("expected a new value after eviction")
	}
}
