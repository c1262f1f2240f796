package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"blog-engagement/engagement/domain"
)

var errBoom = errors.New("boom")

// fakeRemote simula o serviço remoto guardando contadores em memória.
type fakeRemote struct {
	mu sync.Mutex

	metrics map[string]domain.PostMetrics

	getCalls    int
	viewCalls   int
	likeCalls   int
	surveyCalls int
	popular     []domain.PostMetrics

	getErr    error
	viewErr   error
	likeErr   error
	surveyErr error
	popErr    error

	// quando não nil, as escritas avisam em entered e esperam release.
	entered chan struct{}
	release chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{metrics: make(map[string]domain.PostMetrics)}
}

func (f *fakeRemote) seed(m domain.PostMetrics) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics[m.PostID] = m
}

func (f *fakeRemote) wait(ctx context.Context) error {
	if f.entered == nil {
		return nil
	}
	f.entered <- struct{}{}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) GetMetrics(ctx context.Context, postID string) (domain.PostMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return domain.PostMetrics{}, f.getErr
	}
	m, ok := f.metrics[postID]
	if !ok {
		m = domain.PostMetrics{PostID: postID}
	}
	return m, nil
}

func (f *fakeRemote) GetPopularPosts(ctx context.Context, limit int) ([]domain.PostMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.popErr != nil {
		return nil, f.popErr
	}
	return f.popular, nil
}

func (f *fakeRemote) TrackView(ctx context.Context, postID, sessionID string) (domain.PostMetrics, error) {
	if err := f.wait(ctx); err != nil {
		return domain.PostMetrics{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewCalls++
	if f.viewErr != nil {
		return domain.PostMetrics{}, f.viewErr
	}
	m := f.metrics[postID]
	m.PostID = postID
	m.Views++
	f.metrics[postID] = m
	return m, nil
}

func (f *fakeRemote) IncrementLike(ctx context.Context, postID string) (domain.PostMetrics, error) {
	if err := f.wait(ctx); err != nil {
		return domain.PostMetrics{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likeCalls++
	if f.likeErr != nil {
		return domain.PostMetrics{}, f.likeErr
	}
	m := f.metrics[postID]
	m.PostID = postID
	m.Likes++
	f.metrics[postID] = m
	return m, nil
}

func (f *fakeRemote) SubmitSurvey(ctx context.Context, postID string, response domain.SurveyResponse) (domain.PostMetrics, error) {
	if err := f.wait(ctx); err != nil {
		return domain.PostMetrics{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.surveyCalls++
	if f.surveyErr != nil {
		return domain.PostMetrics{}, f.surveyErr
	}
	m := f.metrics[postID]
	m.PostID = postID
	if response == domain.SurveyHelpful {
		m.Survey.Helpful++
	} else {
		m.Survey.NotHelpful++
	}
	f.metrics[postID] = m
	return m, nil
}

type fakeSnapshot struct {
	doc  map[string]domain.PostMetrics
	err  error
	hits int
}

func (s *fakeSnapshot) Lookup(ctx context.Context, postID string) (domain.PostMetrics, error) {
	s.hits++
	if s.err != nil {
		return domain.PostMetrics{}, s.err
	}
	m, ok := s.doc[postID]
	if !ok {
		return domain.PostMetrics{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeSnapshot) All(ctx context.Context) ([]domain.PostMetrics, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.PostMetrics, 0, len(s.doc))
	for _, m := range s.doc {
		out = append(out, m)
	}
	return out, nil
}

type fixedSynth struct{}

func (fixedSynth) Synthesize(postID string) domain.PostMetrics {
	return domain.PostMetrics{PostID: postID, Views: 321, Likes: 12}
}

// fakeCache registra o TTL de cada Put e usa um relógio manual.
type fakeCache struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]domain.CacheEntry
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{now: time.Unix(1700000000, 0), entries: make(map[string]domain.CacheEntry)}
}

func (c *fakeCache) Get(postID string) (domain.PostMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[postID]
	if !ok || !e.Fresh(c.now) {
		return domain.PostMetrics{}, false
	}
	return e.Data, true
}

func (c *fakeCache) Put(postID string, data domain.PostMetrics, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[postID] = domain.CacheEntry{Data: data, FetchedAt: c.now, TTL: ttl}
}

func (c *fakeCache) ttl(postID string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[postID].TTL
}

func (c *fakeCache) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mapFlags é um domain.Flags em memória.
type mapFlags struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMapFlags() *mapFlags { return &mapFlags{keys: make(map[string]bool)} }

func (f *mapFlags) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key]
}

func (f *mapFlags) Set(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = true
}

type recordedEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordedEvents) Record(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordedEvents) outcomes(action domain.Action) []domain.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Outcome
	for _, ev := range r.events {
		if ev.Action == action {
			out = append(out, ev.Outcome)
		}
	}
	return out
}
