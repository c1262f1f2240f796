package domain

import "context"

type FlagKind string

const (
	FlagLiked    FlagKind = "liked"
	FlagSurveyed FlagKind = "surveyed"
	FlagViewed   FlagKind = "viewed"
)

// FlagKey monta a chave "<kind>:<postId>".
// Uma chave nunca cobre mais de um post.
func FlagKey(kind FlagKind, postID string) string {
	return string(kind) + ":" + postID
}

// Flags é o contrato síncrono visto pelo controller.
//
// Nunca falha: erro de armazenamento vira "flag não lembrada".
type Flags interface {
	Has(key string) bool
	Set(key string)
}

// KeyValueStore é o armazenamento genérico por trás dos flags
// (durável por dispositivo ou efêmero por sessão).
//
// Não há garantia de atomicidade além de uma operação isolada, e escritas
// podem falhar (quota, indisponibilidade); quem chama deve tolerar.
type KeyValueStore interface {
	Load(ctx context.Context, scope, key string) (value string, found bool, err error)
	Store(ctx context.Context, scope, key, value string) error
}

// SessionKeeper controla a validade do escopo de uma sessão.
//
// Touch renova o escopo e informa se ele já existia. Um id de sessão cujo
// escopo expirou não pode ser reaproveitado: os flags de view dele sumiram.
type SessionKeeper interface {
	Touch(ctx context.Context, scope string) (alive bool, err error)
}
