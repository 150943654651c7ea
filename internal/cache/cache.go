// Package cache provides a small generic LRU cache with TTL, used to keep
// recently computed spending summaries hot between requests.
package cache

import (
	"log/slog"
	"time"
)

// Cache is the read-through cache contract the services layer depends on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries in bulk.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps expired entries out of registered caches.
type Manager struct {
	caches []Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins sweeping at the given interval until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cleaned := 0
				for _, c := range m.caches {
					cleaned += c.CleanExpired()
				}
				if cleaned > 0 {
					slog.Debug("Cache cleanup pass", "entries_removed", cleaned)
				}
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}
