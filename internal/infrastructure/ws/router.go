package ws

import (
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
)

// Router delivers events to room members. Delivery is at-most-once: a full
// outbound queue or a closing connection drops the event, nothing is retried.
type Router struct {
	registry *Registry
	logger   logging.Logger
	metrics  *metrics.Metrics
}

func NewRouter(registry *Registry, logger logging.Logger, m *metrics.Metrics) *Router {
	return &Router{
		registry: registry,
		logger:   logger,
		metrics:  m,
	}
}

// Broadcast sends ev to every member of roomKey except exclude, which is
// matched by connection id. It returns the number of successful enqueues.
func (rt *Router) Broadcast(roomKey string, ev *Outbound, exclude Conn) int {
	var excludeID string
	if exclude != nil {
		excludeID = exclude.ID()
	}

	delivered := 0
	for _, member := range rt.registry.Members(roomKey) {
		if excludeID != "" && member.ID() == excludeID {
			continue
		}
		if rt.Emit(member, ev) {
			delivered++
		}
	}
	return delivered
}

// Emit sends ev to a single connection.
func (rt *Router) Emit(conn Conn, ev *Outbound) bool {
	ok := conn.Send(ev)
	rt.metrics.ObserveDelivery(ev.Event, ok)

	if !ok {
		rt.logger.Debug(logging.WebSocket, logging.Delivery, "outbound queue full, dropping event", map[logging.ExtraKey]any{
			logging.ConnectionID: conn.ID(),
			logging.Event:        ev.Event,
		})
	}
	return ok
}
