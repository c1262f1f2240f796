package application

import (
	"context"
	"time"

	"blog-engagement/engagement/domain"
)

// ConcurrencyService limita quantas requisições de engajamento o servidor
// atende ao mesmo tempo. Não sabe nada de HTTP.
//
// A espera por vaga dura no máximo AcquireTimeout; com valor <= 0 só o ctx
// da requisição limita a espera.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return noopRelease, true
	}
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}
	if release, ok = s.Pool.Acquire(ctx); !ok {
		return nil, false
	}
	return release, true
}

func noopRelease() {}
