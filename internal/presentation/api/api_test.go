package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/parley/internal/infrastructure/configs"
	jsonutil "github.com/hilthontt/parley/internal/infrastructure/json"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/hilthontt/parley/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
	healthHandler "github.com/hilthontt/parley/internal/presentation/handler/health"
	socketHandler "github.com/hilthontt/parley/internal/presentation/handler/socket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testApp struct {
	app     *Application
	handler http.Handler
	core    *ws.Core
	metrics *metrics.Metrics
}

func newTestApp(t *testing.T, burst int) *testApp {
	t.Helper()

	cfg, err := configs.Load("")
	require.NoError(t, err)

	logger := logging.NewNop()
	m := metrics.New("parley_test")
	registry := ws.NewRegistry()
	dispatcher := ws.NewDispatcher(registry, ws.NewRouter(registry, logger, m), logger, ws.WithMetrics(m))
	core := ws.NewCore(dispatcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-core.Done()
	})

	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: burst})
	t.Cleanup(func() { _ = limiter.Close() })

	app := NewApplication(
		*cfg,
		healthHandler.NewHandler(core),
		socketHandler.NewHandler(core, ws.NewUpgrader(1024, 1024, cfg.HTTP.AllowedOrigins), ws.DefaultClientConfig(), logger),
		m,
		logger,
		zap.NewNop().Sugar(),
		limiter,
	)

	return &testApp{app: app, handler: app.Mount(), core: core, metrics: m}
}

func (ta *testApp) do(method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func TestBanner(t *testing.T) {
	ta := newTestApp(t, 100)

	rec := ta.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API is running", rec.Body.String())
}

func TestNotFoundIsJSON(t *testing.T) {
	ta := newTestApp(t, 100)

	rec := ta.do(http.MethodGet, "/api/chat", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body jsonutil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, "Not Found - /api/chat", body.Message)
}

func TestHealthRoutes(t *testing.T) {
	ta := newTestApp(t, 100)

	for _, path := range []string{"/api/health", "/api/healthz", "/api/ready", "/api/live"} {
		rec := ta.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"activeConnections":0`, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ta := newTestApp(t, 100)
	ta.do(http.MethodGet, "/api/health", nil)

	rec := ta.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parley_test_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/health"`)
}

func TestRateLimit(t *testing.T) {
	ta := newTestApp(t, 2)
	header := http.Header{"X-Forwarded-For": []string{"203.0.113.9"}}

	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/", header).Code)
	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/", header).Code)

	rec := ta.do(http.MethodGet, "/", header)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// metrics are not rate limited
	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/metrics", header).Code)
}

func TestCors(t *testing.T) {
	ta := newTestApp(t, 100)

	rec := ta.do(http.MethodGet, "/", http.Header{"Origin": []string{"http://localhost:3000"}})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ta.do(http.MethodGet, "/", http.Header{"Origin": []string{"http://evil.example"}})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ta.do(http.MethodOptions, "/api/health", http.Header{"Origin": []string{"http://localhost:3000"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecovererWritesJSON(t *testing.T) {
	ta := newTestApp(t, 100)

	h := ta.app.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "An unexpected error occurred")
}

func TestWebsocketThroughMiddlewareStack(t *testing.T) {
	ta := newTestApp(t, 100)
	srv := httptest.NewServer(ta.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "setup", "data": map[string]string{"_id": "u1"}}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var frame ws.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, ws.ConnectedEvent, frame.Event)

	rec := ta.do(http.MethodGet, "/api/health", nil)
	assert.Contains(t, rec.Body.String(), `"activeConnections":1`)
}
