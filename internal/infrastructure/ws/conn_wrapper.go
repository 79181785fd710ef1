package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connWrapper serialises writers on a gorilla connection, which supports one
// concurrent writer and one concurrent reader.
type connWrapper struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func newConnWrapper(c *websocket.Conn) *connWrapper {
	return &connWrapper{conn: c}
}

func (w *connWrapper) WriteJSON(v any, wait time.Duration) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

func (w *connWrapper) WritePing(wait time.Duration) error {
	return w.writeControl(websocket.PingMessage, nil, wait)
}

func (w *connWrapper) WriteClose(code int, wait time.Duration) error {
	return w.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), wait)
}

func (w *connWrapper) writeControl(messageType int, data []byte, wait time.Duration) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.WriteControl(messageType, data, time.Now().Add(wait))
}

func (w *connWrapper) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.Close()
}
