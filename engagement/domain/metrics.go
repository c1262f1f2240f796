package domain

import (
	"math"
	"time"
)

// PostMetrics é o snapshot canônico de contadores de um post.
type PostMetrics struct {
	PostID string      `json:"postId"`
	Views  int64       `json:"views"`
	Likes  int64       `json:"likes"`
	Survey SurveyTally `json:"survey"`
}

type SurveyTally struct {
	Helpful    int64 `json:"helpful"`
	NotHelpful int64 `json:"notHelpful"`
}

func (s SurveyTally) Total() int64 { return s.Helpful + s.NotHelpful }

// HelpfulPercentage retorna round(100*helpful/total).
// ok=false quando ainda não há respostas.
func (s SurveyTally) HelpfulPercentage() (int, bool) {
	total := s.Total()
	if total <= 0 {
		return 0, false
	}
	return int(math.Round(100 * float64(s.Helpful) / float64(total))), true
}

// Normalize garante contadores >= 0 (payloads externos não são confiáveis).
func (m PostMetrics) Normalize() PostMetrics {
	if m.Views < 0 {
		m.Views = 0
	}
	if m.Likes < 0 {
		m.Likes = 0
	}
	if m.Survey.Helpful < 0 {
		m.Survey.Helpful = 0
	}
	if m.Survey.NotHelpful < 0 {
		m.Survey.NotHelpful = 0
	}
	return m
}

// Tier identifica de qual fonte veio um snapshot.
// A ordem de consulta é estrita: cache, live, static, synthetic.
type Tier int

const (
	TierCache Tier = iota
	TierLive
	TierStatic
	TierSynthetic
)

func (t Tier) String() string {
	switch t {
	case TierCache:
		return "cache"
	case TierLive:
		return "live"
	case TierStatic:
		return "static"
	case TierSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// CacheEntry pertence exclusivamente ao MetricsCache.
type CacheEntry struct {
	Data      PostMetrics
	FetchedAt time.Time
	TTL       time.Duration
}

// Fresh reporta se a entrada ainda está dentro da janela de frescor.
func (e CacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// MetricsCache guarda o último snapshot conhecido por post.
//
// Get só retorna entradas frescas; a remoção de entradas vencidas é preguiçosa.
type MetricsCache interface {
	Get(postID string) (PostMetrics, bool)
	Put(postID string, data PostMetrics, ttl time.Duration)
}
