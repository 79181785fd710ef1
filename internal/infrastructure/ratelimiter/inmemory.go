package ratelimiter

import (
	"sync"
	"time"
)

type inMemoryEntry struct {
	value     int
	expiresAt time.Time
}

type InMemory struct {
	mu        sync.RWMutex
	entries   map[string]inMemoryEntry
	stop      chan struct{}
	closeOnce sync.Once
}

// NewInMemory starts a janitor that sweeps expired entries every interval.
func NewInMemory(interval time.Duration) *InMemory {
	if interval <= 0 {
		interval = time.Minute
	}

	im := &InMemory{
		entries: make(map[string]inMemoryEntry),
		stop:    make(chan struct{}),
	}
	go im.janitor(interval)

	return im
}

func (i *InMemory) Get(key string) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.entries[key]
	if !ok || entry.expired(time.Now()) {
		return 0, ErrCacheMiss
	}
	return entry.value, nil
}

func (i *InMemory) Set(key string, value int) error {
	return i.SetWithExpiration(key, value, 0)
}

func (i *InMemory) SetWithExpiration(key string, value int, expiration time.Duration) error {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	i.mu.Lock()
	i.entries[key] = inMemoryEntry{value: value, expiresAt: expiresAt}
	i.mu.Unlock()

	return nil
}

func (i *InMemory) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

func (i *InMemory) Close() error {
	i.closeOnce.Do(func() {
		close(i.stop)
	})
	return nil
}

func (i *InMemory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			i.sweep(time.Now())
		case <-i.stop:
			return
		}
	}
}

func (i *InMemory) sweep(now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for key, entry := range i.entries {
		if entry.expired(now) {
			delete(i.entries, key)
		}
	}
}

func (e inMemoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
