package infra

import "testing"

func TestHashSynthesizer_Deterministic(t *testing.T) {
	s := NewHashSynthesizer()

	a := s.Synthesize("seo-ranking-factors-2024")
	b := s.Synthesize("seo-ranking-factors-2024")
	if a != b {
		t.Fatalf("expected same values for same post, got %+v and %+v", a, b)
	}
	if a.PostID != "seo-ranking-factors-2024" {
		t.Fatalf("expected post id to be kept, got %q", a.PostID)
	}
}

func TestHashSynthesizer_PlausibleRanges(t *testing.T) {
	s := NewHashSynthesizer()

	for _, id := range []string{"a", "b", "hello-world", "post-123", "zz"} {
		m := s.Synthesize(id)
		if m.Views < 50 || m.Views >= 550 {
			t.Fatalf("%s: views out of range: %d", id, m.Views)
		}
		if m.Likes < 1 || m.Likes > m.Views*12/100+1 {
			t.Fatalf("%s: implausible likes %d for %d views", id, m.Likes, m.Views)
		}
		if m.Survey.Total() != 0 {
			t.Fatalf("%s: survey must be empty", id)
		}
	}
}
