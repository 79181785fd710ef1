package socket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
)

type Handler struct {
	core      *ws.Core
	upgrader  *websocket.Upgrader
	clientCfg ws.ClientConfig
	logger    logging.Logger
}

func NewHandler(core *ws.Core, upgrader *websocket.Upgrader, clientCfg ws.ClientConfig, logger logging.Logger) *Handler {
	return &Handler{
		core:      core,
		upgrader:  upgrader,
		clientCfg: clientCfg,
		logger:    logger,
	}
}

// ServeWS upgrades the request and hands the connection to the realtime core.
// The connection starts unidentified until the client sends "setup".
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.logger.Warn(logging.WebSocket, logging.Connection, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := ws.NewClient(conn, h.clientCfg, h.logger)
	if !h.core.Register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.clientCfg.WriteWait))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.core)
}
