package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/parley/internal/infrastructure/json"
)

type ConnectionCounter interface {
	ActiveConnections() int
}

type Handler struct {
	counter   ConnectionCounter
	startTime time.Time
	healthy   atomic.Bool
}

func NewHandler(counter ConnectionCounter) *Handler {
	h := &Handler{
		counter:   counter,
		startTime: time.Now(),
	}
	h.healthy.Store(true)
	return h
}

// SetHealthy flips the probe; the server marks itself unhealthy while draining.
func (h *Handler) SetHealthy(healthy bool) {
	h.healthy.Store(healthy)
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.counter != nil {
		resp.ActiveConnections = h.counter.ActiveConnections()
	}

	status := http.StatusOK
	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	_ = json.Write(w, status, resp)
}
