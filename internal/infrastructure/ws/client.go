package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
)

type ClientConfig struct {
	SendQueueSize  int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendQueueSize:  64,
		MaxMessageSize: 32 * 1024,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
	}
}

// Client is a Conn backed by a gorilla websocket. One goroutine reads
// (ReadPump) and one writes (WritePump); everything else talks to it through
// the Core.
type Client struct {
	id         string
	remoteAddr string
	conn       *connWrapper
	send       chan *Outbound
	closed     chan struct{}
	closeOnce  sync.Once
	cfg        ClientConfig
	logger     logging.Logger
}

// withDefaults replaces non-positive fields with DefaultClientConfig values
// and keeps PingPeriod below PongWait.
func (cfg ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	return cfg
}

func NewClient(conn *websocket.Conn, cfg ClientConfig, logger logging.Logger) *Client {
	cfg = cfg.withDefaults()

	return &Client{
		id:         uuid.NewString(),
		remoteAddr: conn.RemoteAddr().String(),
		conn:       newConnWrapper(conn),
		send:       make(chan *Outbound, cfg.SendQueueSize),
		closed:     make(chan struct{}),
		cfg:        cfg,
		logger:     logger,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send and Close are only called from the Core loop, so the closed check and
// the enqueue cannot interleave with Close.
func (c *Client) Send(ev *Outbound) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		close(c.send)
	})
}

// ReadPump decodes frames and submits them to the core until the peer goes
// away or the core stops. It unregisters the client on exit.
func (c *Client) ReadPump(core *Core) {
	defer func() {
		core.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn(logging.WebSocket, logging.Connection, "unexpected close", map[logging.ExtraKey]any{
					logging.ConnectionID: c.id,
					logging.ClientIp:     c.remoteAddr,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		ev, err := DecodeInbound(raw)
		if err != nil {
			c.logDecodeError(err)
			continue
		}

		if !core.Submit(c, ev) {
			return
		}
	}
}

func (c *Client) logDecodeError(err error) {
	extra := map[logging.ExtraKey]any{
		logging.ConnectionID: c.id,
		logging.ErrorMessage: err.Error(),
	}

	if errors.Is(err, ErrUnknownEvent) {
		c.logger.Debug(logging.WebSocket, logging.Dispatch, "unknown event ignored", extra)
		return
	}
	c.logger.Warn(logging.WebSocket, logging.Dispatch, "malformed frame ignored", extra)
}

// WritePump drains the outbound queue and keeps the connection alive with
// pings. A closed queue sends a close frame and ends the pump.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteClose(websocket.CloseNormalClosure, c.cfg.WriteWait)
				return
			}

			if err := c.conn.WriteJSON(ev, c.cfg.WriteWait); err != nil {
				c.logger.Debug(logging.WebSocket, logging.Delivery, "write failed", map[logging.ExtraKey]any{
					logging.ConnectionID: c.id,
					logging.Event:        ev.Event,
					logging.ErrorMessage: err.Error(),
				})
				return
			}
		case <-ticker.C:
			if err := c.conn.WritePing(c.cfg.WriteWait); err != nil {
				return
			}
		}
	}
}
