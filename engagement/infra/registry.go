package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SessionRegistry mantém um valor por chave de visitante (o controller daquela
// "página") e um token bucket que limita as escritas desse visitante.
//
// Sessões inativas por mais de idleTTL são descartadas e onEvict é chamado
// fora do lock, para o valor poder se encerrar.
type SessionRegistry[K comparable, T any] struct {
	mu           sync.Mutex
	entries      map[K]*sessionEntry[T]
	factory      func(key K) T
	onEvict      func(T)
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type sessionEntry[T any] struct {
	value    T
	lim      *rate.Limiter
	lastSeen time.Time
}

type RegistryOption[K comparable, T any] func(*SessionRegistry[K, T])

func WithIdleTTL[K comparable, T any](d time.Duration) RegistryOption[K, T] {
	return func(r *SessionRegistry[K, T]) { r.idleTTL = d }
}

func WithCleanupEvery[K comparable, T any](d time.Duration) RegistryOption[K, T] {
	return func(r *SessionRegistry[K, T]) { r.cleanupEvery = d }
}

func WithWriteRate[K comparable, T any](rps float64, burst int) RegistryOption[K, T] {
	return func(r *SessionRegistry[K, T]) {
		r.rps = rate.Limit(rps)
		r.burst = burst
	}
}

func WithOnEvict[K comparable, T any](fn func(T)) RegistryOption[K, T] {
	return func(r *SessionRegistry[K, T]) { r.onEvict = fn }
}

func WithRegistryClock[K comparable, T any](now func() time.Time) RegistryOption[K, T] {
	return func(r *SessionRegistry[K, T]) { r.now = now }
}

func NewSessionRegistry[K comparable, T any](factory func(key K) T, opts ...RegistryOption[K, T]) *SessionRegistry[K, T] {
	r := &SessionRegistry[K, T]{
		entries:      make(map[K]*sessionEntry[T]),
		factory:      factory,
		rps:          rate.Limit(1),
		burst:        5,
		idleTTL:      30 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get devolve o valor da sessão, criando-o no primeiro acesso.
func (r *SessionRegistry[K, T]) Get(key K) T {
	return r.entry(key).value
}

// AllowWrite consome um token do bucket da sessão.
func (r *SessionRegistry[K, T]) AllowWrite(key K) bool {
	return r.entry(key).lim.Allow()
}

func (r *SessionRegistry[K, T]) RPS() float64 { return float64(r.rps) }
func (r *SessionRegistry[K, T]) Burst() int   { return r.burst }

func (r *SessionRegistry[K, T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *SessionRegistry[K, T]) entry(key K) *sessionEntry[T] {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entries[key]; ok {
		ent.lastSeen = now
		return ent
	}

	ent := &sessionEntry[T]{
		value:    r.factory(key),
		lim:      rate.NewLimiter(r.rps, r.burst),
		lastSeen: now,
	}
	r.entries[key] = ent
	return ent
}

func (r *SessionRegistry[K, T]) Cleanup() {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []T
	for k, ent := range r.entries {
		if ent.lastSeen.Before(cutoff) {
			evicted = append(evicted, ent.value)
			delete(r.entries, k)
		}
	}
	r.mu.Unlock()

	if r.onEvict != nil {
		for _, v := range evicted {
			r.onEvict(v)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa sessões inativas periodicamente.
// Pare cancelando o contexto.
func (r *SessionRegistry[K, T]) StartJanitor(ctx context.Context) {
	if r.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(r.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Cleanup()
			}
		}
	}()
}
