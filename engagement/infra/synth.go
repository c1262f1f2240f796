package infra

import (
	"hash/fnv"
	"math/rand/v2"

	"blog-engagement/engagement/domain"
)

// HashSynthesizer gera números plausíveis a partir do hash do postId.
//
// O mesmo post sempre recebe os mesmos valores, então um visitante offline não
// vê o contador "pular" entre recarregamentos. Pesquisa sempre vazia.
type HashSynthesizer struct {
	MinViews int64
	MaxViews int64
}

func NewHashSynthesizer() HashSynthesizer {
	return HashSynthesizer{MinViews: 50, MaxViews: 550}
}

var _ domain.Synthesizer = HashSynthesizer{}

func (s HashSynthesizer) Synthesize(postID string) domain.PostMetrics {
	lo, hi := s.MinViews, s.MaxViews
	if lo <= 0 {
		lo = 1
	}
	if hi <= lo {
		hi = lo + 1
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(postID))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	views := lo + rng.Int64N(hi-lo)
	// likes entre 3% e 12% das views, pelo menos 1
	likes := views * (3 + rng.Int64N(10)) / 100
	if likes < 1 {
		likes = 1
	}
	return domain.PostMetrics{PostID: postID, Views: views, Likes: likes}
}
