package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"blog-engagement/engagement/domain"
)

// Resolver é o que o controller precisa do Fetcher.
type Resolver interface {
	Resolve(ctx context.Context, postID string) (domain.PostMetrics, domain.Tier)
	Prime(postID string, m domain.PostMetrics)
}

// Controller orquestra view, like e pesquisa para UMA sessão (equivale a uma
// página carregada). Posts são independentes entre si.
//
// Estados por post:
//
//	view:     Unseen -> ViewCounted (nunca volta)
//	like:     NotLiked -> Liked (sem "unlike")
//	pesquisa: NotSurveyed -> Surveyed
//
// O mutex só protege os mapas em memória; nunca fica preso durante uma
// chamada remota.
type Controller struct {
	sessionID string

	resolver Resolver
	remote   domain.MetricsService
	durable  domain.Flags
	session  domain.Flags
	events   domain.EventRecorder
	logger   *slog.Logger

	writeTimeout time.Duration

	mu       sync.Mutex
	live     bool
	counted  map[string]bool
	inflight map[string]bool
	engaged  map[string]bool
	display  map[string]domain.PostMetrics
}

// ControllerDeps agrupa os colaboradores de um Controller.
// Durable deve estar no escopo do dispositivo e Session no da sessão.
type ControllerDeps struct {
	Resolver Resolver
	Remote   domain.MetricsService
	Durable  domain.Flags
	Session  domain.Flags
	Events   domain.EventRecorder
	Logger   *slog.Logger

	WriteTimeout time.Duration
}

func NewController(sessionID string, deps ControllerDeps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Controller{
		sessionID:    sessionID,
		resolver:     deps.Resolver,
		remote:       deps.Remote,
		durable:      deps.Durable,
		session:      deps.Session,
		events:       deps.Events,
		logger:       logger.With("sessionId", sessionID),
		writeTimeout: timeout,
		live:         true,
		counted:      make(map[string]bool),
		inflight:     make(map[string]bool),
		engaged:      make(map[string]bool),
		display:      make(map[string]domain.PostMetrics),
	}
}

func (c *Controller) SessionID() string { return c.sessionID }

// Close marca o controller como encerrado: respostas que chegarem depois
// não mexem mais no snapshot exibido.
func (c *Controller) Close() {
	c.mu.Lock()
	c.live = false
	c.mu.Unlock()
}

// Metrics é o acessor de leitura: o melhor snapshot conhecido do post.
//
// O valor resolvido é combinado com o que esta sessão já exibiu (máximo por
// contador), para a sessão nunca ver um contador voltar.
func (c *Controller) Metrics(ctx context.Context, postID string) (domain.PostMetrics, domain.Tier, bool) {
	if postID == "" {
		return domain.PostMetrics{}, domain.TierSynthetic, false
	}
	m, tier := c.resolver.Resolve(ctx, postID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.display[postID]; ok {
		m = maxMetrics(prev, m)
	}
	if c.live {
		c.display[postID] = m
	}
	return m, tier, true
}

// State reporta os flags locais do post para esta sessão.
func (c *Controller) State(postID string) domain.PostState {
	if postID == "" {
		return domain.PostState{}
	}

	c.mu.Lock()
	counted := c.counted[postID]
	engaged := c.engaged[postID]
	c.mu.Unlock()

	return domain.PostState{
		Viewed:   counted || c.session.Has(domain.FlagKey(domain.FlagViewed, postID)),
		Liked:    engaged || c.durable.Has(domain.FlagKey(domain.FlagLiked, postID)),
		Surveyed: c.durable.Has(domain.FlagKey(domain.FlagSurveyed, postID)),
	}
}

// TrackView conta no máximo uma view por post por sessão.
//
// O flag de sessão só é gravado após confirmação do servidor. Se a chamada
// falhar nada é gravado e um recarregamento pode tentar de novo (aceita-se
// contar em dobro raramente para não perder views por falha transitória).
func (c *Controller) TrackView(ctx context.Context, postID string) domain.Result {
	if postID == "" {
		return c.finish(ctx, domain.ActionTrackView, postID, domain.Result{Outcome: domain.OutcomeDisabled})
	}
	op := "view:" + postID

	c.mu.Lock()
	if c.counted[postID] || c.inflight[op] {
		m := c.display[postID]
		c.mu.Unlock()
		return c.finish(ctx, domain.ActionTrackView, postID, domain.Result{Outcome: domain.OutcomeAlreadyDone, Metrics: m})
	}
	c.inflight[op] = true
	c.mu.Unlock()
	defer c.clearInflight(op)

	flag := domain.FlagKey(domain.FlagViewed, postID)
	if c.session.Has(flag) {
		c.mu.Lock()
		c.counted[postID] = true
		m := c.display[postID]
		c.mu.Unlock()
		return c.finish(ctx, domain.ActionTrackView, postID, domain.Result{Outcome: domain.OutcomeAlreadyDone, Metrics: m})
	}

	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	server, err := c.remote.TrackView(wctx, postID, c.sessionID)
	cancel()
	if err != nil {
		c.logger.Warn("view not counted", "postId", postID, "error", err)
		c.mu.Lock()
		m := c.display[postID]
		c.mu.Unlock()
		return c.finish(ctx, domain.ActionTrackView, postID, domain.Result{Outcome: domain.OutcomeFailed, Metrics: m})
	}

	c.session.Set(flag)
	c.resolver.Prime(postID, server)

	c.mu.Lock()
	c.counted[postID] = true
	if c.live {
		c.display[postID] = server
	}
	c.mu.Unlock()

	c.logger.Debug("view counted", "postId", postID, "views", server.Views)
	return c.finish(ctx, domain.ActionTrackView, postID, domain.Result{Outcome: domain.OutcomeSuccess, Metrics: server})
}

// likeTentative é a atualização otimista de um like, com commit e revert
// presos à mesma invocação de ToggleLike.
type likeTentative struct {
	commit func(server domain.PostMetrics) domain.PostMetrics
	revert func() domain.PostMetrics
}

func (c *Controller) applyOptimisticLike(postID string, base domain.PostMetrics) likeTentative {
	before := base.Likes
	optimistic := base
	optimistic.Likes = before + 1

	c.mu.Lock()
	if c.live {
		c.display[postID] = optimistic
		c.engaged[postID] = true
	}
	c.mu.Unlock()

	return likeTentative{
		commit: func(server domain.PostMetrics) domain.PostMetrics {
			c.mu.Lock()
			defer c.mu.Unlock()
			// o valor do servidor vence o palpite otimista.
			if c.live {
				c.display[postID] = server
				c.engaged[postID] = true
			}
			return server
		},
		revert: func() domain.PostMetrics {
			c.mu.Lock()
			defer c.mu.Unlock()
			cur, ok := c.display[postID]
			if !ok {
				cur = optimistic
			}
			if cur.Likes == optimistic.Likes {
				cur.Likes = before
			} else if cur.Likes > before {
				cur.Likes--
			}
			if c.live {
				c.display[postID] = cur
				delete(c.engaged, postID)
			}
			return cur
		},
	}
}

// ToggleLike registra no máximo um like por post por dispositivo.
//
// Duas fases: aplica o +1 otimista, espera o servidor e então confirma
// (grava o flag durável, valor do servidor vence) ou desfaz (contador volta
// ao valor anterior, flag continua ausente para o usuário poder tentar de novo).
func (c *Controller) ToggleLike(ctx context.Context, postID string) domain.Result {
	if postID == "" {
		return c.finish(ctx, domain.ActionIncrementLike, postID, domain.Result{Outcome: domain.OutcomeDisabled})
	}
	op := "like:" + postID
	flag := domain.FlagKey(domain.FlagLiked, postID)

	c.mu.Lock()
	if c.inflight[op] {
		m := c.display[postID]
		c.mu.Unlock()
		return c.finish(ctx, domain.ActionIncrementLike, postID, domain.Result{
			Outcome: domain.OutcomeAlreadyDone, Notice: domain.NoticeAlreadyLiked, Metrics: m, Engaged: true,
		})
	}
	c.inflight[op] = true
	c.mu.Unlock()
	defer c.clearInflight(op)

	if c.durable.Has(flag) {
		c.mu.Lock()
		m := c.display[postID]
		c.mu.Unlock()
		return c.finish(ctx, domain.ActionIncrementLike, postID, domain.Result{
			Outcome: domain.OutcomeAlreadyDone, Notice: domain.NoticeAlreadyLiked, Metrics: m, Engaged: true,
		})
	}

	base, _, _ := c.Metrics(ctx, postID)
	tentative := c.applyOptimisticLike(postID, base)

	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	server, err := c.remote.IncrementLike(wctx, postID)
	cancel()
	if err != nil {
		c.logger.Warn("like failed, rolling back", "postId", postID, "error", err)
		m := tentative.revert()
		return c.finish(ctx, domain.ActionIncrementLike, postID, domain.Result{
			Outcome: domain.OutcomeFailed, Notice: domain.NoticeLikeFailed, Metrics: m,
		})
	}

	c.durable.Set(flag)
	c.resolver.Prime(postID, server)
	m := tentative.commit(server)

	c.logger.Debug("like recorded", "postId", postID, "likes", server.Likes)
	return c.finish(ctx, domain.ActionIncrementLike, postID, domain.Result{Outcome: domain.OutcomeSuccess, Metrics: m, Engaged: true})
}

// SubmitSurvey registra no máximo uma resposta por post por dispositivo,
// seja qual for o valor da segunda tentativa.
//
// Enquanto a chamada está em voo a pesquisa fica "desabilitada" (cliques
// repetidos viram already_done); em caso de falha ela é reabilitada.
func (c *Controller) SubmitSurvey(ctx context.Context, postID string, response domain.SurveyResponse) domain.Result {
	if postID == "" {
		return c.finish(ctx, domain.ActionSubmitSurvey, postID, domain.Result{Outcome: domain.OutcomeDisabled})
	}
	if !response.Valid() {
		return c.finish(ctx, domain.ActionSubmitSurvey, postID, domain.Result{
			Outcome: domain.OutcomeFailed, Notice: domain.NoticeInvalidResponse,
		})
	}
	op := "survey:" + postID
	flag := domain.FlagKey(domain.FlagSurveyed, postID)

	c.mu.Lock()
	if c.inflight[op] {
		m := c.display[postID]
		c.mu.Unlock()
		return c.finish(ctx, domain.ActionSubmitSurvey, postID, domain.Result{
			Outcome: domain.OutcomeAlreadyDone, Notice: domain.NoticeAlreadyResponded, Metrics: m, Engaged: true,
		})
	}
	c.inflight[op] = true
	c.mu.Unlock()
	defer c.clearInflight(op)

	if c.durable.Has(flag) {
		c.mu.Lock()
		m := c.display[postID]
		c.mu.Unlock()
		return c.finish(ctx, domain.ActionSubmitSurvey, postID, domain.Result{
			Outcome: domain.OutcomeAlreadyDone, Notice: domain.NoticeAlreadyResponded, Metrics: m, Engaged: true,
		})
	}

	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	server, err := c.remote.SubmitSurvey(wctx, postID, response)
	cancel()
	if err != nil {
		c.logger.Warn("survey response not recorded", "postId", postID, "response", string(response), "error", err)
		c.mu.Lock()
		m := c.display[postID]
		c.mu.Unlock()
		return c.finish(ctx, domain.ActionSubmitSurvey, postID, domain.Result{
			Outcome: domain.OutcomeFailed, Notice: domain.NoticeSurveyFailed, Metrics: m,
		})
	}

	c.durable.Set(flag)
	c.resolver.Prime(postID, server)

	c.mu.Lock()
	if c.live {
		c.display[postID] = server
	}
	c.mu.Unlock()

	return c.finish(ctx, domain.ActionSubmitSurvey, postID, domain.Result{
		Outcome: domain.OutcomeSuccess, Notice: domain.NoticeSurveyThanks, Metrics: server, Engaged: true,
	})
}

func (c *Controller) clearInflight(op string) {
	c.mu.Lock()
	delete(c.inflight, op)
	c.mu.Unlock()
}

func (c *Controller) finish(ctx context.Context, action domain.Action, postID string, res domain.Result) domain.Result {
	if res.Metrics.PostID == "" {
		res.Metrics.PostID = postID
	}
	if c.events != nil {
		_ = c.events.Record(ctx, domain.Event{
			Action:  action,
			PostID:  postID,
			Outcome: res.Outcome,
			At:      time.Now(),
		})
	}
	return res
}

func maxMetrics(a, b domain.PostMetrics) domain.PostMetrics {
	out := b
	out.Views = max(a.Views, b.Views)
	out.Likes = max(a.Likes, b.Likes)
	out.Survey.Helpful = max(a.Survey.Helpful, b.Survey.Helpful)
	out.Survey.NotHelpful = max(a.Survey.NotHelpful, b.Survey.NotHelpful)
	return out
}
