package application

import (
	"context"
	"log/slog"
	"time"

	"blog-engagement/engagement/domain"
)

// FlagStore expõe um KeyValueStore como o contrato síncrono domain.Flags,
// preso a um escopo (id do dispositivo para flags duráveis, id da sessão
// para flags de sessão).
//
// Erros do backend são logados e engolidos: Has vira false e Set não persiste.
// Isso só afeta a deduplicação em visitas futuras.
type FlagStore struct {
	kv      domain.KeyValueStore
	scope   string
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

type FlagStoreOption func(*FlagStore)

func WithFlagTimeout(d time.Duration) FlagStoreOption {
	return func(s *FlagStore) { s.timeout = d }
}

func WithFlagLogger(l *slog.Logger) FlagStoreOption {
	return func(s *FlagStore) { s.logger = l }
}

// WithFlagName só aparece nos logs ("durable", "session").
func WithFlagName(name string) FlagStoreOption {
	return func(s *FlagStore) { s.name = name }
}

func NewFlagStore(kv domain.KeyValueStore, scope string, opts ...FlagStoreOption) *FlagStore {
	s := &FlagStore{
		kv:      kv,
		scope:   scope,
		name:    "flags",
		timeout: 500 * time.Millisecond,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.Flags = (*FlagStore)(nil)

func (s *FlagStore) Has(key string) bool {
	if s == nil || s.kv == nil || s.scope == "" {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()

	_, found, err := s.kv.Load(ctx, s.scope, key)
	if err != nil {
		s.logger.Warn("flag read failed, treating as unset", "store", s.name, "key", key, "error", err)
		return false
	}
	return found
}

func (s *FlagStore) Set(key string) {
	if s == nil || s.kv == nil || s.scope == "" {
		return
	}
	ctx, cancel := s.ctx()
	defer cancel()

	if err := s.kv.Store(ctx, s.scope, key, "1"); err != nil {
		s.logger.Warn("flag write failed, not remembered", "store", s.name, "key", key, "error", err)
	}
}

func (s *FlagStore) ctx() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}
