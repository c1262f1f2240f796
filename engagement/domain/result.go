package domain

// Outcome é o que a camada de apresentação precisa para renderizar uma ação.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeAlreadyDone Outcome = "already_done"
	OutcomeFailed      Outcome = "failed"
	// OutcomeDisabled: post id não resolvido, engajamento desligado nesta view.
	OutcomeDisabled Outcome = "disabled"
)

// Mensagens exibidas ao usuário como aviso transitório.
const (
	NoticeAlreadyLiked     = "You already liked this post."
	NoticeLikeFailed       = "Failed to like post. Please try again."
	NoticeAlreadyResponded = "You have already responded."
	NoticeSurveyThanks     = "Thanks for your feedback!"
	NoticeSurveyFailed     = "Failed to submit feedback. Please try again."
	NoticeInvalidResponse  = "Unknown survey response."
)

type Result struct {
	Outcome Outcome     `json:"outcome"`
	Notice  string      `json:"notice,omitempty"`
	Metrics PostMetrics `json:"data"`
	// Engaged indica se o controle (like/pesquisa) deve aparecer como já usado.
	Engaged bool `json:"engaged"`
}

// PostState é o estado local (flags) de um post para a sessão atual.
type PostState struct {
	Viewed   bool `json:"viewed"`
	Liked    bool `json:"liked"`
	Surveyed bool `json:"surveyed"`
}
