package identity

import (
	"net/url"
	"testing"

	"github.com/oklog/ulid/v2"
)

type mapCarrier struct {
	values  map[string]string
	durable map[string]bool
	sets    int
}

func newMapCarrier() *mapCarrier {
	return &mapCarrier{values: map[string]string{}, durable: map[string]bool{}}
}

func (c *mapCarrier) Get(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

func (c *mapCarrier) Set(name, value string, durable bool) {
	c.sets++
	c.values[name] = value
	c.durable[name] = durable
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestProvider_PostID(t *testing.T) {
	p := New()

	cases := []struct {
		raw  string
		want string
	}{
		{"https://example.com/blog/seo-ranking-factors-2024.html", "seo-ranking-factors-2024"},
		{"https://example.com/blog/seo-ranking-factors-2024", "seo-ranking-factors-2024"},
		{"https://example.com/blog/post.html?postId=explicit-id", "explicit-id"},
		{"https://example.com/blog/post.html?postId=%20%20", "post"},
		{"https://example.com/blog/", ""},
		{"https://example.com/", ""},
		{"https://example.com/blog/archive.tar.gz", "archive.tar"},
	}
	for _, tc := range cases {
		if got := p.PostID(mustURL(t, tc.raw)); got != tc.want {
			t.Fatalf("PostID(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestProvider_PostIDNilURL(t *testing.T) {
	if got := New().PostID(nil); got != "" {
		t.Fatalf("expected empty post id, got %q", got)
	}
}

func TestProvider_PostIDCustomParam(t *testing.T) {
	p := New(WithPostParam("id"))
	if got := p.PostID(mustURL(t, "https://example.com/x.html?id=abc")); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestProvider_SessionIDIsCreatedOnceAndStable(t *testing.T) {
	p := New()
	c := newMapCarrier()

	first := p.SessionID(c)
	if _, err := ulid.ParseStrict(first); err != nil {
		t.Fatalf("expected ULID session id, got %q: %v", first, err)
	}
	second := p.SessionID(c)
	if first != second {
		t.Fatalf("expected stable session id, got %q then %q", first, second)
	}
	if c.sets != 1 {
		t.Fatalf("expected a single Set, got %d", c.sets)
	}
	if c.durable[DefaultSessionKey] {
		t.Fatalf("session id must not be durable")
	}
}

func TestProvider_DeviceIDIsDurable(t *testing.T) {
	p := New(WithIDGenerator(func() string { return "device-1" }))
	c := newMapCarrier()

	if got := p.DeviceID(c); got != "device-1" {
		t.Fatalf("expected device-1, got %q", got)
	}
	if !c.durable[DefaultDeviceKey] {
		t.Fatalf("device id must be durable")
	}
}

func TestProvider_RotateSessionReplacesCookie(t *testing.T) {
	p := New()
	c := newMapCarrier()

	old := p.SessionID(c)
	rotated := p.RotateSession(c)
	if rotated == old || rotated == "" {
		t.Fatalf("expected a new session id, got %q (old %q)", rotated, old)
	}
	if got := p.SessionID(c); got != rotated {
		t.Fatalf("expected carrier to keep rotated id, got %q", got)
	}
	if c.durable[DefaultSessionKey] {
		t.Fatalf("rotated session id must stay a session value")
	}
}

func TestProvider_ReplacesInvalidStoredID(t *testing.T) {
	p := New(WithIDGenerator(func() string { return "fresh" }))
	c := newMapCarrier()
	c.values[DefaultSessionKey] = "bad value;with spaces"

	if got := p.SessionID(c); got != "fresh" {
		t.Fatalf("expected invalid id to be replaced, got %q", got)
	}
}

func TestProvider_NilCarrier(t *testing.T) {
	if got := New().SessionID(nil); got != "" {
		t.Fatalf("expected empty session id without carrier, got %q", got)
	}
}
