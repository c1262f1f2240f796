package infra

import (
	"context"
	"sync"

	"blog-engagement/engagement/domain"
)

// RequestSlots limita quantas requisições de engajamento ficam em voo ao
// mesmo tempo. As vagas são um channel bufferizado.
type RequestSlots struct {
	slots chan struct{}
}

// NewRequestSlots cria o limitador; max <= 0 vira 1.
func NewRequestSlots(max int) *RequestSlots {
	if max <= 0 {
		max = 1
	}
	return &RequestSlots{slots: make(chan struct{}, max)}
}

var _ domain.SlotPool = (*RequestSlots)(nil)

// Acquire espera uma vaga até o ctx encerrar. O release devolvido pode ser
// chamado mais de uma vez; só a primeira chamada libera a vaga.
func (p *RequestSlots) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.slots <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.slots }) }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InUse e Cap aparecem no /healthz.
func (p *RequestSlots) InUse() int { return len(p.slots) }

func (p *RequestSlots) Cap() int { return cap(p.slots) }
