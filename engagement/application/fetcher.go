package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"blog-engagement/engagement/domain"

	"golang.org/x/sync/singleflight"
)

// Fetcher resolve o snapshot de um post tentando, em ordem estrita:
// cache fresco, serviço remoto, documento estático e valores sintetizados.
//
// Resolve nunca falha. Resoluções concorrentes do mesmo post viram uma só
// ida à rede (singleflight).
type Fetcher struct {
	cache  domain.MetricsCache
	live   domain.MetricsService
	static domain.SnapshotSource
	synth  domain.Synthesizer
	events domain.EventRecorder
	logger *slog.Logger

	liveTTL      time.Duration
	staticTTL    time.Duration
	syntheticTTL time.Duration
	// liveTimeout limita cada tier de rede (live e estático).
	liveTimeout time.Duration

	group singleflight.Group
}

type FetcherOption func(*Fetcher)

func WithLiveTTL(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.liveTTL = d }
}

func WithStaticTTL(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.staticTTL = d }
}

// WithSyntheticTTL: 0 (padrão) não guarda valores sintetizados, para não
// mascarar uma leitura remota que funcionaria logo depois.
func WithSyntheticTTL(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.syntheticTTL = d }
}

func WithLiveTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.liveTimeout = d }
}

func WithFetcherEvents(r domain.EventRecorder) FetcherOption {
	return func(f *Fetcher) { f.events = r }
}

func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

func NewFetcher(cache domain.MetricsCache, live domain.MetricsService, static domain.SnapshotSource, synth domain.Synthesizer, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		cache:       cache,
		live:        live,
		static:      static,
		synth:       synth,
		logger:      slog.Default(),
		liveTTL:     5 * time.Minute,
		staticTTL:   30 * time.Minute,
		liveTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type resolved struct {
	m    domain.PostMetrics
	tier domain.Tier
}

func (f *Fetcher) Resolve(ctx context.Context, postID string) (domain.PostMetrics, domain.Tier) {
	if postID == "" {
		return domain.PostMetrics{}, domain.TierSynthetic
	}
	if m, ok := f.fromCache(postID); ok {
		f.record(ctx, postID, domain.TierCache)
		return m, domain.TierCache
	}

	// a resolução é compartilhada: o cancelamento de quem chegou primeiro
	// não pode derrubar os demais. Os timeouts por tier continuam valendo.
	shared := context.WithoutCancel(ctx)
	v, _, _ := f.group.Do(postID, func() (any, error) {
		return f.resolveUncached(shared, postID), nil
	})
	r := v.(resolved)
	f.record(ctx, postID, r.tier)
	return r.m, r.tier
}

func (f *Fetcher) resolveUncached(ctx context.Context, postID string) resolved {
	// outra resolução pode ter preenchido o cache entre o Get e o Do.
	if m, ok := f.fromCache(postID); ok {
		return resolved{m: m, tier: domain.TierCache}
	}

	if f.live != nil {
		liveCtx, cancel := f.withLiveTimeout(ctx)
		m, err := f.live.GetMetrics(liveCtx, postID)
		cancel()
		if err == nil {
			m.PostID = postID
			f.put(postID, m, f.liveTTL)
			return resolved{m: m, tier: domain.TierLive}
		}
		f.logger.Warn("live metrics unavailable, falling back to static snapshot", "postId", postID, "error", err)
	}

	if f.static != nil {
		staticCtx, cancel := f.withLiveTimeout(ctx)
		m, err := f.static.Lookup(staticCtx, postID)
		cancel()
		if err == nil {
			m.PostID = postID
			f.put(postID, m, f.staticTTL)
			return resolved{m: m, tier: domain.TierStatic}
		}
		if errors.Is(err, domain.ErrNotFound) {
			f.logger.Debug("post missing from static snapshot", "postId", postID)
		} else {
			f.logger.Warn("static snapshot unavailable", "postId", postID, "error", err)
		}
	}

	m := domain.PostMetrics{PostID: postID}
	if f.synth != nil {
		m = f.synth.Synthesize(postID)
		m.PostID = postID
	}
	if f.syntheticTTL > 0 {
		f.put(postID, m, f.syntheticTTL)
	}
	return resolved{m: m, tier: domain.TierSynthetic}
}

// Popular tenta getPopularPosts no serviço remoto e cai para o documento
// estático ordenado por views. Nunca falha: na pior hipótese lista vazia.
func (f *Fetcher) Popular(ctx context.Context, limit int) ([]domain.PostMetrics, domain.Tier) {
	if limit <= 0 {
		limit = 5
	}

	if f.live != nil {
		liveCtx, cancel := f.withLiveTimeout(ctx)
		posts, err := f.live.GetPopularPosts(liveCtx, limit)
		cancel()
		if err == nil {
			return truncate(posts, limit), domain.TierLive
		}
		f.logger.Warn("live popular posts unavailable, falling back to static snapshot", "error", err)
	}

	if f.static != nil {
		staticCtx, cancel := f.withLiveTimeout(ctx)
		posts, err := f.static.All(staticCtx)
		cancel()
		if err == nil {
			return truncate(posts, limit), domain.TierStatic
		}
		f.logger.Warn("static snapshot unavailable for popular posts", "error", err)
	}
	return []domain.PostMetrics{}, domain.TierSynthetic
}

// Prime grava um snapshot confirmado pelo servidor (após uma escrita),
// com o TTL de dados live.
func (f *Fetcher) Prime(postID string, m domain.PostMetrics) {
	if postID == "" {
		return
	}
	f.put(postID, m, f.liveTTL)
}

func (f *Fetcher) fromCache(postID string) (domain.PostMetrics, bool) {
	if f.cache == nil {
		return domain.PostMetrics{}, false
	}
	return f.cache.Get(postID)
}

func (f *Fetcher) put(postID string, m domain.PostMetrics, ttl time.Duration) {
	if f.cache == nil {
		return
	}
	m.PostID = postID
	f.cache.Put(postID, m, ttl)
}

func (f *Fetcher) withLiveTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.liveTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.liveTimeout)
}

func (f *Fetcher) record(ctx context.Context, postID string, tier domain.Tier) {
	if f.events == nil {
		return
	}
	_ = f.events.Record(ctx, domain.Event{
		Action:  domain.ActionGetMetrics,
		PostID:  postID,
		Outcome: domain.OutcomeSuccess,
		Tier:    tier.String(),
		At:      time.Now(),
	})
}

func truncate(posts []domain.PostMetrics, limit int) []domain.PostMetrics {
	if len(posts) > limit {
		return posts[:limit]
	}
	return posts
}
