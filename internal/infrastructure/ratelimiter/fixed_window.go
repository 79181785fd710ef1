package ratelimiter

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// FixedWindow allows limit requests per source in each aligned window.
// Counters are process-local.
type FixedWindow struct {
	counts          sync.Map // sourceKey -> *windowCounter
	limit           int64
	window          time.Duration
	sourceHeaderKey string
	now             func() time.Time

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

type windowCounter struct {
	mu      sync.Mutex
	count   atomic.Int64
	resetAt atomic.Int64 // unix nanos
}

func NewFixedWindow(limit int, window time.Duration, sourceHeaderKey string) *FixedWindow {
	if window <= 0 {
		window = time.Second
	}
	if sourceHeaderKey == "" {
		sourceHeaderKey = defaultSourceKey
	}

	fw := &FixedWindow{
		limit:           int64(limit),
		window:          window,
		sourceHeaderKey: sourceHeaderKey,
		now:             time.Now,
		ticker:          time.NewTicker(window),
		done:            make(chan struct{}),
	}
	go fw.cleanup()

	return fw
}

func (fw *FixedWindow) counter(sourceKey string, now time.Time) *windowCounter {
	val, _ := fw.counts.LoadOrStore(sourceKey, &windowCounter{})
	c := val.(*windowCounter)

	if now.UnixNano() < c.resetAt.Load() {
		return c
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another request may have rolled the window while we waited
	if now.UnixNano() >= c.resetAt.Load() {
		c.count.Store(0)
		c.resetAt.Store(now.Truncate(fw.window).Add(fw.window).UnixNano())
	}
	return c
}

func (fw *FixedWindow) Allow(sourceKey string) bool {
	c := fw.counter(sourceKey, fw.now())

	if c.count.Add(1) > fw.limit {
		c.count.Add(-1)
		return false
	}
	return true
}

func (fw *FixedWindow) Remaining(sourceKey string) int {
	c := fw.counter(sourceKey, fw.now())

	remaining := fw.limit - c.count.Load()
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

func (fw *FixedWindow) RetryAfter(sourceKey string) time.Duration {
	now := fw.now()
	c := fw.counter(sourceKey, now)
	return time.Duration(c.resetAt.Load() - now.UnixNano())
}

func (fw *FixedWindow) GetMaxBurst() int {
	return int(fw.limit)
}

func (fw *FixedWindow) GetSourceKey(r *http.Request) string {
	return sourceKey(r, fw.sourceHeaderKey)
}

func (fw *FixedWindow) cleanup() {
	for {
		select {
		case <-fw.ticker.C:
			now := fw.now().UnixNano()
			fw.counts.Range(func(key, value any) bool {
				if now >= value.(*windowCounter).resetAt.Load() {
					fw.counts.Delete(key)
				}
				return true
			})
		case <-fw.done:
			return
		}
	}
}

func (fw *FixedWindow) Close() error {
	fw.closeOnce.Do(func() {
		fw.ticker.Stop()
		close(fw.done)
	})
	return nil
}
