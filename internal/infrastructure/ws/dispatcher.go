package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hilthontt/parley/ws"

type State int

const (
	StateConnected State = iota
	StateIdentified
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ActivityNotifier receives presence notifications. Implementations must not
// block: Notify runs on the Core loop.
type ActivityNotifier interface {
	Notify(activity domain.SessionActivity)
}

type nopNotifier struct{}

func (nopNotifier) Notify(domain.SessionActivity) {}

type session struct {
	conn   Conn
	state  State
	userID string
}

// Dispatcher runs the per-connection state machine and turns inbound events
// into registry and router calls. Like Registry it is confined to the Core
// loop goroutine.
type Dispatcher struct {
	registry *Registry
	router   *Router
	notifier ActivityNotifier
	logger   logging.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	sessions map[string]*session
	order    []string
}

type DispatcherOption func(*Dispatcher)

func WithNotifier(n ActivityNotifier) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

func NewDispatcher(registry *Registry, router *Router, logger logging.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		router:   router,
		notifier: nopNotifier{},
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		sessions: make(map[string]*session),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Connect starts tracking conn in the Connected state.
func (d *Dispatcher) Connect(conn Conn) {
	id := conn.ID()
	if _, exists := d.sessions[id]; exists {
		return
	}

	d.sessions[id] = &session{conn: conn, state: StateConnected}
	d.order = append(d.order, id)
	d.metrics.SetActiveConnections(len(d.sessions))

	d.logger.Info(logging.WebSocket, logging.Connection, "user connected", map[logging.ExtraKey]any{
		logging.ConnectionID: id,
	})
	d.notify(domain.EventSessionConnected, id, "", "")
}

// State reports StateDisconnected for connections it does not track.
func (d *Dispatcher) State(conn Conn) State {
	s, ok := d.sessions[conn.ID()]
	if !ok {
		return StateDisconnected
	}
	return s.state
}

func (d *Dispatcher) ActiveSessions() int {
	return len(d.sessions)
}

// Conns returns the tracked connections in connect order.
func (d *Dispatcher) Conns() []Conn {
	conns := make([]Conn, 0, len(d.order))
	for _, id := range d.order {
		conns = append(conns, d.sessions[id].conn)
	}
	return conns
}

// Dispatch handles one inbound event for conn. Events from untracked or
// disconnected connections are ignored; a panicking handler is logged and
// swallowed so the loop keeps running.
func (d *Dispatcher) Dispatch(ctx context.Context, conn Conn, ev Inbound) {
	s, ok := d.sessions[conn.ID()]
	if !ok {
		d.logger.Debug(logging.WebSocket, logging.Dispatch, "event from untracked connection ignored", map[logging.ExtraKey]any{
			logging.ConnectionID: conn.ID(),
			logging.Event:        ev.EventName(),
		})
		return
	}

	d.metrics.IncInbound(ev.EventName())

	_, span := d.tracer.Start(ctx, "ws."+ev.EventName(), trace.WithAttributes(
		attribute.String("ws.connection_id", s.conn.ID()),
		attribute.String("ws.state", s.state.String()),
	))
	defer span.End()
	defer d.recoverHandler(span, s, ev)

	switch e := ev.(type) {
	case Setup:
		d.handleSetup(s, e)
	case JoinChat:
		d.handleJoinChat(span, s, e)
	case Typing:
		span.SetAttributes(attribute.String("ws.room", e.Room))
		d.router.Broadcast(e.Room, NewTyping(), s.conn)
	case StopTyping:
		span.SetAttributes(attribute.String("ws.room", e.Room))
		d.router.Broadcast(e.Room, NewStopTyping(), s.conn)
	case NewMessage:
		d.handleNewMessage(span, s, e)
	case Disconnect:
		d.handleDisconnect(s)
	default:
		d.logger.Debug(logging.WebSocket, logging.Dispatch, "no handler for event", map[logging.ExtraKey]any{
			logging.ConnectionID: s.conn.ID(),
			logging.Event:        ev.EventName(),
		})
	}
}

func (d *Dispatcher) recoverHandler(span trace.Span, s *session, ev Inbound) {
	r := recover()
	if r == nil {
		return
	}

	err := fmt.Errorf("handler panic: %v", r)
	span.RecordError(err)
	span.SetStatus(codes.Error, "handler panic")

	d.logger.Error(logging.WebSocket, logging.Recover, "recovered from handler panic", map[logging.ExtraKey]any{
		logging.ConnectionID: s.conn.ID(),
		logging.Event:        ev.EventName(),
		logging.ErrorMessage: err.Error(),
	})
}

func (d *Dispatcher) handleSetup(s *session, e Setup) {
	userID := e.User.ID
	if userID == "" {
		d.logger.Warn(logging.WebSocket, logging.Dispatch, "setup without user id ignored", map[logging.ExtraKey]any{
			logging.ConnectionID: s.conn.ID(),
		})
		return
	}

	// a connection only ever sits in its own personal room
	if s.state == StateIdentified && s.userID != userID {
		d.registry.Leave(s.conn, s.userID)
	}

	d.registry.Join(s.conn, userID)
	s.userID = userID
	s.state = StateIdentified
	d.metrics.SetRooms(d.registry.RoomCount())

	d.router.Emit(s.conn, NewConnected())

	d.logger.Info(logging.WebSocket, logging.Connection, "user identified", map[logging.ExtraKey]any{
		logging.ConnectionID: s.conn.ID(),
		logging.UserID:       userID,
	})
	d.notify(domain.EventSessionIdentified, s.conn.ID(), userID, userID)
}

func (d *Dispatcher) handleJoinChat(span trace.Span, s *session, e JoinChat) {
	span.SetAttributes(attribute.String("ws.room", e.Room))

	if !d.registry.Join(s.conn, e.Room) {
		return
	}
	d.metrics.SetRooms(d.registry.RoomCount())

	d.logger.Info(logging.WebSocket, logging.Connection, "user joined room", map[logging.ExtraKey]any{
		logging.ConnectionID: s.conn.ID(),
		logging.UserID:       s.userID,
		logging.RoomKey:      e.Room,
	})
	d.notify(domain.EventChatJoined, s.conn.ID(), s.userID, e.Room)
}

func (d *Dispatcher) handleNewMessage(span trace.Span, s *session, e NewMessage) {
	recipients, err := e.Message.Recipients()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn(logging.WebSocket, logging.Dispatch, "new message dropped", map[logging.ExtraKey]any{
			logging.ConnectionID: s.conn.ID(),
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	payload := NewMessageReceived(e.Raw)
	delivered := 0
	for _, userID := range recipients {
		delivered += d.router.Broadcast(userID, payload, s.conn)
	}

	span.SetAttributes(
		attribute.Int("ws.recipients", len(recipients)),
		attribute.Int("ws.delivered", delivered),
	)
	d.logger.Debug(logging.WebSocket, logging.Delivery, "message fanned out", map[logging.ExtraKey]any{
		logging.ConnectionID: s.conn.ID(),
		logging.Recipients:   len(recipients),
		"delivered":          delivered,
	})
}

func (d *Dispatcher) handleDisconnect(s *session) {
	id := s.conn.ID()
	rooms := d.registry.Release(s.conn)
	s.state = StateDisconnected

	delete(d.sessions, id)
	for i, tracked := range d.order {
		if tracked == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}

	d.metrics.SetActiveConnections(len(d.sessions))
	d.metrics.SetRooms(d.registry.RoomCount())

	d.logger.Info(logging.WebSocket, logging.Connection, "user disconnected", map[logging.ExtraKey]any{
		logging.ConnectionID: id,
		logging.UserID:       s.userID,
		"rooms":              len(rooms),
	})
	d.notify(domain.EventSessionDisconnected, id, s.userID, "")
}

func (d *Dispatcher) notify(eventType domain.SessionEventType, connID, userID, roomKey string) {
	d.notifier.Notify(domain.SessionActivity{
		Type:         eventType,
		ConnectionID: connID,
		UserID:       userID,
		RoomKey:      roomKey,
		At:           d.now(),
	})
}
