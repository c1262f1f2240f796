package infra

import (
	"context"
	"sync"

	"blog-engagement/engagement/domain"
)

// Counters conta desfechos de uma ação.
type Counters struct {
	Success     int64
	AlreadyDone int64
	Failed      int64
	Disabled    int64
}

func (c *Counters) add(o domain.Outcome) {
	switch o {
	case domain.OutcomeSuccess:
		c.Success++
	case domain.OutcomeAlreadyDone:
		c.AlreadyDone++
	case domain.OutcomeFailed:
		c.Failed++
	case domain.OutcomeDisabled:
		c.Disabled++
	}
}

// MemoryEventRecorder é uma implementação simples em memória.
// Útil para testes e desenvolvimento; não faz expiração.
type MemoryEventRecorder struct {
	mu       sync.Mutex
	byAction map[domain.Action]Counters
	byPost   map[string]Counters
	byTier   map[string]int64

	trackPosts bool
}

type MemoryEventsOption func(*MemoryEventRecorder)

func WithTrackPosts(track bool) MemoryEventsOption {
	return func(s *MemoryEventRecorder) { s.trackPosts = track }
}

func NewMemoryEventRecorder(opts ...MemoryEventsOption) *MemoryEventRecorder {
	s := &MemoryEventRecorder{
		byAction: make(map[domain.Action]Counters),
		byPost:   make(map[string]Counters),
		byTier:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryEventRecorder) Record(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byAction[ev.Action]
	c.add(ev.Outcome)
	s.byAction[ev.Action] = c

	if ev.Tier != "" {
		s.byTier[ev.Tier]++
	}

	if s.trackPosts && ev.PostID != "" {
		p := s.byPost[ev.PostID]
		p.add(ev.Outcome)
		s.byPost[ev.PostID] = p
	}
	return nil
}

func (s *MemoryEventRecorder) ByAction() map[domain.Action]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Action]Counters, len(s.byAction))
	for k, v := range s.byAction {
		out[k] = v
	}
	return out
}

func (s *MemoryEventRecorder) ByPost() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byPost))
	for k, v := range s.byPost {
		out[k] = v
	}
	return out
}

// ByTier conta de qual camada vieram as leituras de métricas.
func (s *MemoryEventRecorder) ByTier() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byTier))
	for k, v := range s.byTier {
		out[k] = v
	}
	return out
}
