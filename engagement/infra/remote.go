package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"blog-engagement/engagement/domain"
)

const maxResponseBytes = 1 << 20

// HTTPMetricsService fala com o serviço remoto de métricas.
//
// Leituras: GET <endpoint>?action=...&postId=...
// Escritas: POST <endpoint> com JSON {"action","postId","sessionId","response"}
// Resposta de sucesso: 2xx com envelope {"data": {...}}.
type HTTPMetricsService struct {
	endpoint string
	client   *http.Client
}

type HTTPMetricsOption func(*HTTPMetricsService)

func WithHTTPClient(c *http.Client) HTTPMetricsOption {
	return func(s *HTTPMetricsService) { s.client = c }
}

func NewHTTPMetricsService(endpoint string, opts ...HTTPMetricsOption) *HTTPMetricsService {
	s := &HTTPMetricsService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.MetricsService = (*HTTPMetricsService)(nil)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

type writeRequest struct {
	Action    domain.Action         `json:"action"`
	PostID    string                `json:"postId"`
	SessionID string                `json:"sessionId,omitempty"`
	Response  domain.SurveyResponse `json:"response,omitempty"`
}

func (s *HTTPMetricsService) GetMetrics(ctx context.Context, postID string) (domain.PostMetrics, error) {
	q := url.Values{}
	q.Set("action", string(domain.ActionGetMetrics))
	q.Set("postId", postID)

	data, err := s.get(ctx, q)
	if err != nil {
		return domain.PostMetrics{}, err
	}
	return decodePostMetrics(data, postID)
}

func (s *HTTPMetricsService) GetPopularPosts(ctx context.Context, limit int) ([]domain.PostMetrics, error) {
	q := url.Values{}
	q.Set("action", string(domain.ActionGetPopularPosts))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	data, err := s.get(ctx, q)
	if err != nil {
		return nil, err
	}
	var posts []domain.PostMetrics
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("%w: popular posts: %v", domain.ErrMalformed, err)
	}
	out := make([]domain.PostMetrics, 0, len(posts))
	for _, p := range posts {
		if p.PostID == "" {
			continue
		}
		out = append(out, p.Normalize())
	}
	return out, nil
}

func (s *HTTPMetricsService) TrackView(ctx context.Context, postID, sessionID string) (domain.PostMetrics, error) {
	return s.write(ctx, writeRequest{Action: domain.ActionTrackView, PostID: postID, SessionID: sessionID})
}

func (s *HTTPMetricsService) IncrementLike(ctx context.Context, postID string) (domain.PostMetrics, error) {
	return s.write(ctx, writeRequest{Action: domain.ActionIncrementLike, PostID: postID})
}

func (s *HTTPMetricsService) SubmitSurvey(ctx context.Context, postID string, response domain.SurveyResponse) (domain.PostMetrics, error) {
	return s.write(ctx, writeRequest{Action: domain.ActionSubmitSurvey, PostID: postID, Response: response})
}

func (s *HTTPMetricsService) get(ctx context.Context, q url.Values) (json.RawMessage, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint: %v", domain.ErrUnavailable, err)
	}
	merged := u.Query()
	for k, v := range q {
		merged[k] = v
	}
	u.RawQuery = merged.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	return s.do(req)
}

func (s *HTTPMetricsService) write(ctx context.Context, body writeRequest) (domain.PostMetrics, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return domain.PostMetrics{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(buf))
	if err != nil {
		return domain.PostMetrics{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	data, err := s.do(req)
	if err != nil {
		return domain.PostMetrics{}, err
	}
	return decodePostMetrics(data, body.PostID)
}

func (s *HTTPMetricsService) do(req *http.Request) (json.RawMessage, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnavailable, env.Error)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, fmt.Errorf("%w: missing data", domain.ErrMalformed)
	}
	return env.Data, nil
}

// decodePostMetrics exige um objeto com views e likes.
// postId ausente é preenchido; postId diferente do pedido é payload inválido.
func decodePostMetrics(data json.RawMessage, postID string) (domain.PostMetrics, error) {
	var probe struct {
		PostID string              `json:"postId"`
		Views  *int64              `json:"views"`
		Likes  *int64              `json:"likes"`
		Survey *domain.SurveyTally `json:"survey"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return domain.PostMetrics{}, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}
	if probe.Views == nil || probe.Likes == nil {
		return domain.PostMetrics{}, fmt.Errorf("%w: views/likes missing", domain.ErrMalformed)
	}
	if probe.PostID != "" && probe.PostID != postID {
		return domain.PostMetrics{}, fmt.Errorf("%w: postId %q != %q", domain.ErrMalformed, probe.PostID, postID)
	}

	m := domain.PostMetrics{PostID: postID, Views: *probe.Views, Likes: *probe.Likes}
	if probe.Survey != nil {
		m.Survey = *probe.Survey
	}
	return m.Normalize(), nil
}
