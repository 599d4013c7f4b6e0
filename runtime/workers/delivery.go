package workers

import (
	"context"
	"log/slog"
	"time"

	"pairlink/contract"
	"pairlink/runtime"
)

// Delivery drains the router's outbound queue and pushes each envelope to
// the sinks serving its target sessions.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. A session that disconnected between emission and
// delivery silently receives nothing. Because one Delivery worker consumes
// the whole queue, events addressed to the same group are observed by its
// sessions in the order they were emitted.
type Delivery struct {
	Log         *slog.Logger
	Router      *runtime.Router
	SinkTimeout time.Duration
}

func NewDelivery(log *slog.Logger, router *runtime.Router, sinkTimeout time.Duration) *Delivery {
	return &Delivery{Log: log, Router: router, SinkTimeout: sinkTimeout}
}

func (w Delivery) Run(ctx context.Context) error {
	for {
		select {
		case env := <-w.Router.Outbound():
			w.deliver(ctx, env)
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping delivery")
			return nil
		}
	}
}

// deliver resolves each target session to its current sink.
func (w Delivery) deliver(ctx context.Context, env runtime.Envelope) {
	for _, sessionID := range env.SessionIDs {
		sink, ok := w.Router.Sink(sessionID)
		if !ok {
			continue
		}
		w.consume(ctx, sink, env)
	}
}

func (w Delivery) consume(ctx context.Context, sink contract.EventSink, env runtime.Envelope) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.SinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, env.Event); err != nil {
		w.Log.Debug("Sink refused event",
			"event", env.Event.EventName(),
			"error", err)
	}
}
