package domain

import (
	"context"
	"errors"
)

// Action é o discriminador aceito pelo serviço remoto de métricas.
type Action string

const (
	ActionTrackView       Action = "trackView"
	ActionIncrementLike   Action = "incrementLike"
	ActionSubmitSurvey    Action = "submitSurvey"
	ActionGetMetrics      Action = "getMetrics"
	ActionGetPopularPosts Action = "getPopularPosts"
)

type SurveyResponse string

const (
	SurveyHelpful    SurveyResponse = "helpful"
	SurveyNotHelpful SurveyResponse = "notHelpful"
)

func (r SurveyResponse) Valid() bool {
	return r == SurveyHelpful || r == SurveyNotHelpful
}

var (
	// ErrUnavailable cobre erro de rede, timeout e status HTTP não-2xx.
	ErrUnavailable = errors.New("metrics service unavailable")
	// ErrMalformed indica payload sem os campos esperados.
	// É tratado igual a ErrUnavailable por quem chama.
	ErrMalformed = errors.New("malformed metrics payload")
	// ErrNotFound: o snapshot estático não tem entrada para o post.
	ErrNotFound = errors.New("post not found")
)

// MetricsService é o colaborador externo dono dos contadores.
//
// Todas as operações retornam o snapshot confirmado pelo servidor.
type MetricsService interface {
	GetMetrics(ctx context.Context, postID string) (PostMetrics, error)
	GetPopularPosts(ctx context.Context, limit int) ([]PostMetrics, error)
	TrackView(ctx context.Context, postID, sessionID string) (PostMetrics, error)
	IncrementLike(ctx context.Context, postID string) (PostMetrics, error)
	SubmitSurvey(ctx context.Context, postID string, response SurveyResponse) (PostMetrics, error)
}

// SnapshotSource é o documento estático pré-gerado com todos os posts.
type SnapshotSource interface {
	Lookup(ctx context.Context, postID string) (PostMetrics, error)
	All(ctx context.Context) ([]PostMetrics, error)
}

// Synthesizer produz um snapshot plausível quando nenhuma fonte respondeu.
// Nunca é enviado ao serviço remoto.
type Synthesizer interface {
	Synthesize(postID string) PostMetrics
}

// SlotPool limita quantas requisições ao subsistema ficam em voo ao mesmo tempo.
// Acquire espera por uma vaga até o ctx encerrar; o release devolve a vaga e
// deve ser chamado uma única vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
