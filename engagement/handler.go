package engagement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"blog-engagement/engagement/application"
	"blog-engagement/engagement/domain"
	"blog-engagement/engagement/identity"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Sessions devolve o Controller do visitante.
// *infra.SessionRegistry[Visitor, *application.Controller] satisfaz esta interface.
type Sessions interface {
	Get(v Visitor) *application.Controller
}

// PopularSource é o que o Handler precisa para getPopularPosts.
type PopularSource interface {
	Popular(ctx context.Context, limit int) ([]domain.PostMetrics, domain.Tier)
}

type Options struct {
	Identity identity.Provider
	Cookies  CookieOptions
	Sessions Sessions
	// SessionKeeper é o store de sessão; nil desliga a rotação de sessões
	// expiradas.
	SessionKeeper domain.SessionKeeper
	Popular       PopularSource
	Throttle      ThrottleOptions
	Concurrency   application.ConcurrencyService
	// Health acrescenta campos ao /healthz (tamanho do registro, vagas em uso).
	Health func() gin.H
	Logger *slog.Logger
}

type Handler struct {
	opts   Options
	logger *slog.Logger
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Identity.SessionKey() == "" {
		opts.Identity = identity.New()
	}
	if opts.Throttle.Logger == nil {
		opts.Throttle.Logger = logger
	}
	return &Handler{opts: opts, logger: logger}
}

// Register monta as rotas:
//
//	GET  /healthz
//	GET  /api/engagement/popular?limit=
//	GET  /api/engagement/metrics?postId=|page=
//	POST /api/engagement/view
//	POST /api/engagement/like
//	POST /api/engagement/survey   {"response":"helpful"|"notHelpful"}
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	api := r.Group("/api/engagement", LimitConcurrency(h.opts.Concurrency))
	api.GET("/popular", h.popular)

	visitor := api.Group("", Identify(h.opts.Identity, h.opts.Cookies, h.opts.SessionKeeper))
	visitor.GET("/metrics", h.metrics)

	writes := visitor.Group("", ThrottleWrites(h.opts.Throttle))
	writes.POST("/view", h.trackView)
	writes.POST("/like", h.like)
	writes.POST("/survey", h.survey)
}

// CORS libera as origens do site; precisa ficar no engine (r.Use) para
// responder ao preflight de rotas POST.
func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Retry-After", "X-RateLimit-RPS", "X-RateLimit-Burst"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type actionRequest struct {
	PostID   string                `json:"postId"`
	Page     string                `json:"page"`
	Response domain.SurveyResponse `json:"response"`
}

type metricsResponse struct {
	Outcome           domain.Outcome     `json:"outcome"`
	Data              domain.PostMetrics `json:"data"`
	Tier              string             `json:"tier"`
	State             domain.PostState   `json:"state"`
	HelpfulPercentage *int               `json:"helpfulPercentage,omitempty"`
}

func (h *Handler) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.opts.Health != nil {
		for k, v := range h.opts.Health() {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) popular(c *gin.Context) {
	if h.opts.Popular == nil {
		c.JSON(http.StatusOK, gin.H{"data": []domain.PostMetrics{}, "tier": domain.TierSynthetic.String()})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	posts, tier := h.opts.Popular.Popular(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{"data": posts, "tier": tier.String()})
}

func (h *Handler) metrics(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	postID := h.postID(c, actionRequest{})

	m, tier, ok := ctrl.Metrics(c.Request.Context(), postID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"outcome": domain.OutcomeDisabled})
		return
	}
	resp := metricsResponse{
		Outcome: domain.OutcomeSuccess,
		Data:    m,
		Tier:    tier.String(),
		State:   ctrl.State(postID),
	}
	if pct, ok := m.Survey.HelpfulPercentage(); ok {
		resp.HelpfulPercentage = &pct
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) trackView(c *gin.Context) {
	h.write(c, func(ctx context.Context, ctrl *application.Controller, postID string, _ actionRequest) domain.Result {
		return ctrl.TrackView(ctx, postID)
	})
}

func (h *Handler) like(c *gin.Context) {
	h.write(c, func(ctx context.Context, ctrl *application.Controller, postID string, _ actionRequest) domain.Result {
		return ctrl.ToggleLike(ctx, postID)
	})
}

func (h *Handler) survey(c *gin.Context) {
	h.write(c, func(ctx context.Context, ctrl *application.Controller, postID string, req actionRequest) domain.Result {
		return ctrl.SubmitSurvey(ctx, postID, req.Response)
	})
}

type writeFunc func(ctx context.Context, ctrl *application.Controller, postID string, req actionRequest) domain.Result

// write roda uma ação de escrita. O ctx não é cancelado se o cliente sair
// da página no meio da chamada; o Controller aplica o próprio timeout.
func (h *Handler) write(c *gin.Context, fn writeFunc) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	res := fn(ctx, ctrl, h.postID(c, req), req)
	c.JSON(http.StatusOK, res)
}

func (h *Handler) controller(c *gin.Context) (*application.Controller, bool) {
	v, ok := VisitorFrom(c)
	if !ok || h.opts.Sessions == nil {
		h.logger.Error("engagement route without visitor or sessions", "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return nil, false
	}
	return h.opts.Sessions.Get(v), true
}

// postID resolve o post em ordem: postId explícito (corpo ou query), URL da
// página (corpo ou query "page") e por fim o Referer.
func (h *Handler) postID(c *gin.Context, req actionRequest) string {
	if id := strings.TrimSpace(req.PostID); id != "" {
		return id
	}
	if id := h.opts.Identity.PostID(&url.URL{RawQuery: c.Request.URL.RawQuery}); id != "" {
		return id
	}
	for _, raw := range []string{req.Page, c.Query("page"), c.Request.Referer()} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if id := h.opts.Identity.PostID(u); id != "" {
			return id
		}
	}
	return ""
}
