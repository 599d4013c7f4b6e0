package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"pairlink/contract"
	"pairlink/domain"
	"pairlink/domain/event"
)

// Envelope is one addressed notification waiting for delivery.
type Envelope struct {
	SessionIDs []string
	Event      event.Event
}

// Router fans out events to live sessions. Target session ids are resolved
// when the event is emitted; the sinks themselves are resolved by the
// delivery worker, so a session that disconnects in between simply receives
// nothing. Emissions share one outbound channel consumed by a single
// worker, which keeps broadcasts for a given group in commit order.
type Router struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sinks    map[string]contract.EventSink // map session id -> sink
	outbound chan Envelope
}

func NewRouter(log *slog.Logger, bufferSize int) *Router {
	return &Router{
		log:      log,
		sinks:    make(map[string]contract.EventSink),
		outbound: make(chan Envelope, bufferSize),
	}
}

// Register attaches the sink serving sessionID.
func (r *Router) Register(sessionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[sessionID] = sink
}

// Unregister detaches the session. Events already queued for it are dropped
// at delivery time.
func (r *Router) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, sessionID)
}

// Sink resolves the sink currently serving sessionID.
func (r *Router) Sink(sessionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[sessionID]
	return sink, ok
}

// Outbound exposes the delivery queue consumed by the delivery worker.
func (r *Router) Outbound() chan Envelope {
	return r.outbound
}

func (r *Router) ToSession(sessionID string, e event.Event) {
	r.emit([]string{sessionID}, e)
}

func (r *Router) ToSessions(sessionIDs []string, e event.Event) {
	r.emit(sessionIDs, e)
}

// ToGroup addresses every session currently joined to the group.
func (r *Router) ToGroup(group domain.Group, e event.Event) {
	r.emit(group.SessionIDs(), e)
}

// ToAllExcept addresses every registered session but the caller's.
func (r *Router) ToAllExcept(callerSessionID string, e event.Event) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sinks))
	for id := range r.sinks {
		if id != callerSessionID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()
	r.emit(ids, e)
}

// emit queues the envelope, dropping it when the channel is full.
// No buffering guarantee, no retry: the router is not a message broker.
func (r *Router) emit(sessionIDs []string, e event.Event) {
	if len(sessionIDs) == 0 {
		return
	}
	select {
	case r.outbound <- Envelope{SessionIDs: sessionIDs, Event: e}:
	default:
		r.log.Warn(fmt.Sprintf("Outbound channel full, dropping %s event", e.EventName()))
	}
}
