package main

import (
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"blog-engagement/engagement/domain"

	"github.com/gin-gonic/gin"
)

// counterStore guarda os contadores do stub em memória.
type counterStore struct {
	mu    sync.Mutex
	posts map[string]domain.PostMetrics
}

func newCounterStore() *counterStore {
	return &counterStore{posts: make(map[string]domain.PostMetrics)}
}

// loadSeed aceita o mesmo formato do documento estático (postId -> métricas).
func (s *counterStore) loadSeed(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc map[string]domain.PostMetrics
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range doc {
		m.PostID = id
		s.posts[id] = m.Normalize()
	}
	return nil
}

func (s *counterStore) get(postID string) domain.PostMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.posts[postID]
	m.PostID = postID
	return m
}

func (s *counterStore) update(postID string, fn func(*domain.PostMetrics)) domain.PostMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.posts[postID]
	m.PostID = postID
	fn(&m)
	s.posts[postID] = m
	return m
}

func (s *counterStore) popular(limit int) []domain.PostMetrics {
	s.mu.Lock()
	out := make([]domain.PostMetrics, 0, len(s.posts))
	for _, m := range s.posts {
		out = append(out, m)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].PostID < out[j].PostID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type writeRequest struct {
	Action    domain.Action         `json:"action"`
	PostID    string                `json:"postId"`
	SessionID string                `json:"sessionId"`
	Response  domain.SurveyResponse `json:"response"`
}

type stubOptions struct {
	// latency atrasa toda resposta (para exercitar timeouts do cliente).
	latency time.Duration
}

// register monta o protocolo do serviço de métricas na raiz:
// leituras em GET ?action=..., escritas em POST com JSON, respostas {"data": ...}.
func register(r gin.IRouter, store *counterStore, opts stubOptions) {
	if opts.latency > 0 {
		r.Use(func(c *gin.Context) {
			select {
			case <-time.After(opts.latency):
			case <-c.Request.Context().Done():
			}
			c.Next()
		})
	}

	r.GET("/", func(c *gin.Context) {
		switch domain.Action(c.Query("action")) {
		case domain.ActionGetMetrics:
			postID := strings.TrimSpace(c.Query("postId"))
			if postID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "postId required"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": store.get(postID)})
		case domain.ActionGetPopularPosts:
			limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
			if err != nil || limit <= 0 {
				limit = 5
			}
			c.JSON(http.StatusOK, gin.H{"data": store.popular(limit)})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		}
	})

	r.POST("/", func(c *gin.Context) {
		var req writeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		postID := strings.TrimSpace(req.PostID)
		if postID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "postId required"})
			return
		}

		var m domain.PostMetrics
		switch req.Action {
		case domain.ActionTrackView:
			m = store.update(postID, func(m *domain.PostMetrics) { m.Views++ })
		case domain.ActionIncrementLike:
			m = store.update(postID, func(m *domain.PostMetrics) { m.Likes++ })
		case domain.ActionSubmitSurvey:
			if !req.Response.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid response"})
				return
			}
			m = store.update(postID, func(m *domain.PostMetrics) {
				if req.Response == domain.SurveyHelpful {
					m.Survey.Helpful++
				} else {
					m.Survey.NotHelpful++
				}
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": m})
	})
}
