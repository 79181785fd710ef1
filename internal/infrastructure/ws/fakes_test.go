package ws

import (
	"testing"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id       string
	capacity int // 0 means unbounded
	received []*Outbound
	closed   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(ev *Outbound) bool {
	if f.closed {
		return false
	}
	if f.capacity > 0 && len(f.received) >= f.capacity {
		return false
	}
	f.received = append(f.received, ev)
	return true
}

func (f *fakeConn) Close() { f.closed = true }

func (f *fakeConn) events() []string {
	names := make([]string, 0, len(f.received))
	for _, ev := range f.received {
		names = append(names, ev.Event)
	}
	return names
}

func (f *fakeConn) reset() { f.received = nil }

type recordingNotifier struct {
	activities []domain.SessionActivity
}

func (r *recordingNotifier) Notify(activity domain.SessionActivity) {
	r.activities = append(r.activities, activity)
}

func (r *recordingNotifier) types() []domain.SessionEventType {
	types := make([]domain.SessionEventType, 0, len(r.activities))
	for _, a := range r.activities {
		types = append(types, a.Type)
	}
	return types
}

// counterValue reads a single counter sample from the metrics registry.
func counterValue(t *testing.T, m *metrics.Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	next:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func userWithID(id string) domain.User {
	return domain.User{ID: id}
}
