// Package events publishes pipeline telemetry to a Redis Stream.
//
// Emission is best-effort. Dropped events are logged and never fail the
// request that produced them.
package events

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/json"
)

const (
	// DefaultStream is the stream key unless configured otherwise.
	DefaultStream = "ragx:events"

	// streamMaxLen caps the stream with approximate trimming so old
	// entries are evicted cheaply.
	streamMaxLen = 10000

	emitTimeout = 2 * time.Second
)

// Emitter appends pipeline events to a Redis Stream.
type Emitter struct {
	rdb    *goredis.Client
	stream string
}

// NewEmitter creates an emitter on the given stream key; an empty key
// selects DefaultStream.
func NewEmitter(rdb *goredis.Client, stream string) *Emitter {
	if stream == "" {
		stream = DefaultStream
	}
	return &Emitter{rdb: rdb, stream: stream}
}

// EmitMetrics publishes token usage and latency for a completed AI turn.
func (e *Emitter) EmitMetrics(ctx context.Context, ev model.MetricsEvent) {
	e.emit(ctx, model.EventKindMetrics, ev)
}

// EmitQuery publishes an incoming user query.
func (e *Emitter) EmitQuery(ctx context.Context, ev model.QueryEvent) {
	e.emit(ctx, model.EventKindQuery, ev)
}

// EmitError publishes a pipeline failure.
func (e *Emitter) EmitError(ctx context.Context, ev model.ErrorEvent) {
	e.emit(ctx, model.EventKindError, ev)
}

// EmitHistoryExtra publishes auxiliary history metadata keyed by message.
func (e *Emitter) EmitHistoryExtra(ctx context.Context, payload any) {
	e.emit(ctx, model.EventKindHistoryExtra, payload)
}

func (e *Emitter) emit(ctx context.Context, kind string, payload any) {
	if e == nil || e.rdb == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warnw("event payload marshal failed", "kind", kind, "error", err.Error())
		return
	}

	// Detach from the request context so cancellation does not drop the
	// event of an already completed turn.
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	err = e.rdb.XAdd(emitCtx, &goredis.XAddArgs{
		Stream: e.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"kind":    kind,
			"payload": string(data),
			"ts":      time.Now().UnixMilli(),
		},
	}).Err()
	if err != nil {
		logger.Warnw("event emission failed", "kind", kind, "stream", e.stream, "error", err.Error())
	}
}
