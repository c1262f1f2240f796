package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"blog-engagement/engagement/domain"

	"golang.org/x/sync/singleflight"
)

// SnapshotLoader lê o documento estático gerado no build: um objeto JSON
// postId -> {views, likes, survey}.
//
// source pode ser uma URL http(s) ou um caminho local. O documento parseado
// fica em memória por ttl; falha de carga não é memorizada. O download roda
// fora do mutex e chamadas concorrentes esperam o mesmo download.
type SnapshotLoader struct {
	source string
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	doc      map[string]domain.PostMetrics
	loadedAt time.Time

	loads singleflight.Group
}

type SnapshotOption func(*SnapshotLoader)

func WithSnapshotTTL(d time.Duration) SnapshotOption {
	return func(s *SnapshotLoader) { s.ttl = d }
}

func WithSnapshotHTTPClient(c *http.Client) SnapshotOption {
	return func(s *SnapshotLoader) { s.client = c }
}

func WithSnapshotClock(now func() time.Time) SnapshotOption {
	return func(s *SnapshotLoader) { s.now = now }
}

func NewSnapshotLoader(source string, opts ...SnapshotOption) *SnapshotLoader {
	s := &SnapshotLoader{
		source: strings.TrimSpace(source),
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    30 * time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.SnapshotSource = (*SnapshotLoader)(nil)

func (s *SnapshotLoader) Lookup(ctx context.Context, postID string) (domain.PostMetrics, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return domain.PostMetrics{}, err
	}
	m, ok := doc[postID]
	if !ok {
		return domain.PostMetrics{}, fmt.Errorf("%w: %s", domain.ErrNotFound, postID)
	}
	return m, nil
}

// All devolve o corpus inteiro ordenado por views (desc), depois por postId.
func (s *SnapshotLoader) All(ctx context.Context) ([]domain.PostMetrics, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PostMetrics, 0, len(doc))
	for _, m := range doc {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].PostID < out[j].PostID
	})
	return out, nil
}

func (s *SnapshotLoader) document(ctx context.Context) (map[string]domain.PostMetrics, error) {
	if s.source == "" {
		return nil, fmt.Errorf("%w: no snapshot source configured", domain.ErrUnavailable)
	}
	if doc, ok := s.cached(); ok {
		return doc, nil
	}

	// o download é compartilhado; cada chamador só espera até o próprio ctx.
	ch := s.loads.DoChan("doc", func() (any, error) {
		if doc, ok := s.cached(); ok {
			return doc, nil
		}
		raw, err := s.read(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		doc, err := parseSnapshot(raw)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.doc = doc
		s.loadedAt = s.now()
		s.mu.Unlock()
		return doc, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]domain.PostMetrics), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: snapshot: %v", domain.ErrUnavailable, ctx.Err())
	}
}

func (s *SnapshotLoader) cached() (map[string]domain.PostMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil && s.now().Sub(s.loadedAt) < s.ttl {
		return s.doc, true
	}
	return nil, false
}

func (s *SnapshotLoader) read(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(s.source, "http://") && !strings.HasPrefix(s.source, "https://") {
		raw, err := os.ReadFile(s.source)
		if err != nil {
			return nil, fmt.Errorf("%w: snapshot file: %v", domain.ErrUnavailable, err)
		}
		return raw, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot fetch: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: snapshot status %d", domain.ErrUnavailable, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8*maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot read: %v", domain.ErrUnavailable, err)
	}
	return raw, nil
}

func parseSnapshot(raw []byte) (map[string]domain.PostMetrics, error) {
	var parsed map[string]domain.PostMetrics
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", domain.ErrMalformed, err)
	}
	doc := make(map[string]domain.PostMetrics, len(parsed))
	for id, m := range parsed {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		// a chave do mapa manda; o postId interno é opcional no documento.
		m.PostID = id
		doc[id] = m.Normalize()
	}
	return doc, nil
}
