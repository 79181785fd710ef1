package ws

import (
	"testing"

	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, logging.NewNop(), nil)
	sender, other, third := newFakeConn("s"), newFakeConn("o"), newFakeConn("t")

	for _, c := range []*fakeConn{sender, other, third} {
		r.Join(c, "chat42")
	}

	n := router.Broadcast("chat42", NewTyping(), sender)

	assert.Equal(t, 2, n)
	assert.Empty(t, sender.received)
	assert.Equal(t, []string{TypingEvent}, other.events())
	assert.Equal(t, []string{TypingEvent}, third.events())
}

func TestRouterBroadcastWithoutExclusion(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r, logging.NewNop(), nil)
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	r.Join(c1, "u1")
	r.Join(c2, "u1")

	assert.Equal(t, 2, router.Broadcast("u1", NewConnected(), nil))
	assert.Equal(t, 0, router.Broadcast("nobody", NewConnected(), nil))
}

func TestRouterDropsOnFullQueue(t *testing.T) {
	m := metrics.New("test")
	r := NewRegistry()
	router := NewRouter(r, logging.NewNop(), m)

	slow := newFakeConn("slow")
	slow.capacity = 1
	fast := newFakeConn("fast")
	r.Join(slow, "room")
	r.Join(fast, "room")

	assert.Equal(t, 2, router.Broadcast("room", NewTyping(), nil))
	assert.Equal(t, 1, router.Broadcast("room", NewStopTyping(), nil))

	require.Len(t, slow.received, 1)
	assert.Equal(t, []string{TypingEvent, StopTypingEvent}, fast.events())

	assert.Equal(t, float64(1), counterValue(t, m, "test_ws_deliveries_total", map[string]string{
		"event": StopTypingEvent, "result": metrics.ResultDropped,
	}))
	assert.Equal(t, float64(2), counterValue(t, m, "test_ws_deliveries_total", map[string]string{
		"event": TypingEvent, "result": metrics.ResultDelivered,
	}))
}
