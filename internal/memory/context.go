package memory

import (
	"context"
	"sync"

	"github.com/kart-io/ragx/internal/model"
)

type ctxKey struct{}

// pendingSlot holds the per-request AI payload handoff. Writes replace the
// whole payload; the last writer wins.
type pendingSlot struct {
	mu      sync.Mutex
	payload *model.PendingAIPayload
}

// WithPending attaches an empty payload slot to the request context.
func WithPending(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &pendingSlot{})
}

// SetPending stores the payload for the current request. Missing slot is a
// no-op so pipeline stages can run outside a request too.
func SetPending(ctx context.Context, payload model.PendingAIPayload) {
	slot, ok := ctx.Value(ctxKey{}).(*pendingSlot)
	if !ok {
		return
	}
	slot.mu.Lock()
	slot.payload = &payload
	slot.mu.Unlock()
}

// PopPending removes and returns the payload. A request that never stored
// one gets a zero payload, so token counts coalesce to 0 downstream.
func PopPending(ctx context.Context) model.PendingAIPayload {
	slot, ok := ctx.Value(ctxKey{}).(*pendingSlot)
	if !ok {
		return model.PendingAIPayload{}
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.payload == nil {
		return model.PendingAIPayload{}
	}
	p := *slot.payload
	slot.payload = nil
	return p
}
