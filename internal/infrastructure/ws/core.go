package ws

import (
	"context"
	"sync/atomic"

	"github.com/hilthontt/parley/internal/infrastructure/logging"
)

type envelope struct {
	conn  Conn
	event Inbound
}

// Core owns the registry and dispatcher and serialises every mutation on a
// single goroutine. Transports hand it connections and decoded events through
// channels; the channels are unbuffered so events from one connection are
// handled in the order they were read, and before that connection's
// unregistration.
type Core struct {
	dispatcher *Dispatcher
	logger     logging.Logger

	register   chan Conn
	unregister chan Conn
	inbound    chan envelope
	done       chan struct{}
	active     atomic.Int64
}

func NewCore(dispatcher *Dispatcher, logger logging.Logger) *Core {
	return &Core{
		dispatcher: dispatcher,
		logger:     logger,
		register:   make(chan Conn),
		unregister: make(chan Conn),
		inbound:    make(chan envelope),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and events until ctx is cancelled, then
// disconnects and closes every remaining connection.
func (c *Core) Run(ctx context.Context) {
	defer close(c.done)

	c.logger.Info(logging.WebSocket, logging.Startup, "realtime core started", nil)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case conn := <-c.register:
			c.dispatcher.Connect(conn)
			c.active.Store(int64(c.dispatcher.ActiveSessions()))
		case env := <-c.inbound:
			c.dispatcher.Dispatch(ctx, env.conn, env.event)
			c.active.Store(int64(c.dispatcher.ActiveSessions()))
		case conn := <-c.unregister:
			c.dispatcher.Dispatch(ctx, conn, Disconnect{})
			conn.Close()
			c.active.Store(int64(c.dispatcher.ActiveSessions()))
		}
	}
}

func (c *Core) shutdown() {
	conns := c.dispatcher.Conns()
	for _, conn := range conns {
		c.dispatcher.Dispatch(context.Background(), conn, Disconnect{})
		conn.Close()
	}
	c.active.Store(0)

	c.logger.Info(logging.WebSocket, logging.Shutdown, "realtime core stopped", map[logging.ExtraKey]any{
		"closed": len(conns),
	})
}

// Register returns false once the core has stopped.
func (c *Core) Register(conn Conn) bool {
	select {
	case c.register <- conn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Core) Unregister(conn Conn) bool {
	select {
	case c.unregister <- conn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Core) Submit(conn Conn, ev Inbound) bool {
	select {
	case c.inbound <- envelope{conn: conn, event: ev}:
		return true
	case <-c.done:
		return false
	}
}

func (c *Core) ActiveConnections() int {
	return int(c.active.Load())
}

func (c *Core) Done() <-chan struct{} {
	return c.done
}
