// Package hub fans messages out to connected sessions.
package hub

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dougsko/rigbridge/pkg/logging"
)

// Sink accepts messages for one subscriber. Implementations must be
// comparable (normally a pointer); identity is used for membership.
type Sink interface {
	Send(msg interface{}) error
}

// Hub is a set of sinks. Subscribe, Unsubscribe and Publish may be called
// concurrently.
type Hub struct {
	sinks  *xsync.MapOf[Sink, struct{}]
	logger *logging.Logger
}

// New creates an empty hub
func New(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		sinks:  xsync.NewMapOf[Sink, struct{}](),
		logger: logger,
	}
}

// Subscribe adds a sink. Adding the same sink twice has no effect.
func (h *Hub) Subscribe(sink Sink) {
	h.sinks.Store(sink, struct{}{})
}

// Unsubscribe removes a sink if present
func (h *Hub) Unsubscribe(sink Sink) {
	h.sinks.Delete(sink)
}

// Len returns the number of subscribed sinks
func (h *Hub) Len() int {
	return h.sinks.Size()
}

// Publish sends msg to every sink and returns how many accepted it. A sink
// that fails is removed once the pass is complete and gets nothing further.
func (h *Hub) Publish(msg interface{}) int {
	var failed []Sink
	delivered := 0

	h.sinks.Range(func(sink Sink, _ struct{}) bool {
		if err := sink.Send(msg); err != nil {
			h.logger.Debug("hub", "dropping subscriber", map[string]interface{}{"error": err.Error()})
			failed = append(failed, sink)
			return true
		}
		delivered++
		return true
	})

	for _, sink := range failed {
		h.sinks.Delete(sink)
	}
	if len(failed) > 0 {
		h.logger.Infof("hub", "removed %d failed subscribers, %d remaining", len(failed), h.sinks.Size())
	}
	return delivered
}
