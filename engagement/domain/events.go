package domain

import (
	"context"
	"time"
)

// Event representa o desfecho de uma ação de engajamento.
//
// Observação: cuidado com cardinalidade ao persistir PostID (um hash por post
// pode crescer bastante em Redis se o blog tiver muitos artigos).
type Event struct {
	Action  Action
	PostID  string
	Outcome Outcome
	Tier    string

	At time.Time
}

// EventRecorder é a estratégia de persistência dos contadores de desfecho.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem chama trata erro como best-effort (nunca derruba a ação).
type EventRecorder interface {
	Record(ctx context.Context, ev Event) error
}
