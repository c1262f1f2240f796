package infra

import (
	"context"
	"sync"
	"time"

	"blog-engagement/engagement/domain"
)

// MemoryKV é um KeyValueStore em memória, particionado por escopo
// (id de sessão ou de dispositivo).
//
// Com idleTTL > 0 um escopo inativo some por inteiro, o que dá a semântica
// de "store de sessão": os flags não sobrevivem ao fim da sessão.
// Útil para testes e desenvolvimento; não sobrevive a restart.
type MemoryKV struct {
	mu      sync.Mutex
	scopes  map[string]*kvScope
	idleTTL time.Duration
	now     func() time.Time
}

type kvScope struct {
	values   map[string]string
	lastSeen time.Time
}

type MemoryKVOption func(*MemoryKV)

func WithMemoryIdleTTL(d time.Duration) MemoryKVOption {
	return func(s *MemoryKV) { s.idleTTL = d }
}

func WithMemoryClock(now func() time.Time) MemoryKVOption {
	return func(s *MemoryKV) { s.now = now }
}

func NewMemoryKV(opts ...MemoryKVOption) *MemoryKV {
	s := &MemoryKV{
		scopes: make(map[string]*kvScope),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ domain.KeyValueStore = (*MemoryKV)(nil)
	_ domain.SessionKeeper = (*MemoryKV)(nil)
)

func (s *MemoryKV) Load(_ context.Context, scope, key string) (string, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scopes[scope]
	if !ok {
		return "", false, nil
	}
	if s.expired(sc, now) {
		delete(s.scopes, scope)
		return "", false, nil
	}
	sc.lastSeen = now
	v, found := sc.values[key]
	return v, found, nil
}

func (s *MemoryKV) Store(_ context.Context, scope, key, value string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scopes[scope]
	if !ok || s.expired(sc, now) {
		sc = &kvScope{values: make(map[string]string)}
		s.scopes[scope] = sc
	}
	sc.values[key] = value
	sc.lastSeen = now
	return nil
}

// Touch renova o escopo; se ele não existia (ou expirou) nasce vazio.
func (s *MemoryKV) Touch(_ context.Context, scope string) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if sc, ok := s.scopes[scope]; ok && !s.expired(sc, now) {
		sc.lastSeen = now
		return true, nil
	}
	s.scopes[scope] = &kvScope{values: make(map[string]string), lastSeen: now}
	return false, nil
}

func (s *MemoryKV) expired(sc *kvScope, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(sc.lastSeen) >= s.idleTTL
}

// Cleanup descarta escopos inativos há mais de idleTTL.
func (s *MemoryKV) Cleanup() {
	if s.idleTTL <= 0 {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, sc := range s.scopes {
		if s.expired(sc, now) {
			delete(s.scopes, k)
		}
	}
}

// StartJanitor chama Cleanup a cada `every` até o ctx encerrar.
func (s *MemoryKV) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 || s.idleTTL <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
