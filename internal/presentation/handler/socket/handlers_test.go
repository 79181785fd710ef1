package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, origins []string) (*httptest.Server, *ws.Core, context.CancelFunc) {
	t.Helper()

	logger := logging.NewNop()
	registry := ws.NewRegistry()
	core := ws.NewCore(ws.NewDispatcher(registry, ws.NewRouter(registry, logger, nil), logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-core.Done()
	})

	h := NewHandler(core, ws.NewUpgrader(1024, 1024, origins), ws.DefaultClientConfig(), logger)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)

	return srv, core, cancel
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestServeWSSetupAck(t *testing.T) {
	srv, core, _ := newServer(t, []string{"http://localhost:3000"})

	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"setup","data":{"_id":"u1"}}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame ws.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, ws.ConnectedEvent, frame.Event)
	assert.Equal(t, 1, core.ActiveConnections())
}

func TestServeWSRejectsForeignOrigin(t *testing.T) {
	srv, core, _ := newServer(t, []string{"http://localhost:3000"})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, core.ActiveConnections())
}

func TestServeWSAfterCoreStopped(t *testing.T) {
	srv, core, cancel := newServer(t, []string{"*"})
	cancel()
	<-core.Done()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestServeWSClosesOnShutdown(t *testing.T) {
	srv, core, cancel := newServer(t, []string{"*"})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return core.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
