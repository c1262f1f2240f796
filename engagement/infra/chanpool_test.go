package infra

import (
	"context"
	"testing"
	"time"
)

func TestRequestSlots_BlocksWhenFull(t *testing.T) {
	p := NewRequestSlots(1)

	release, ok := p.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := p.Acquire(ctx); ok {
		t.Fatalf("expected second acquire to time out")
	}

	release()
	release() // repetido não libera vaga extra
	if p.InUse() != 0 {
		t.Fatalf("expected no slots in use, got %d", p.InUse())
	}

	if _, ok := p.Acquire(context.Background()); !ok {
		t.Fatalf("expected acquire after release")
	}
	if p.InUse() != 1 || p.Cap() != 1 {
		t.Fatalf("unexpected usage %d/%d", p.InUse(), p.Cap())
	}
}
