package http

import (
	"sync"
	"time"
)

// writeLimiter is a fixed-window request counter per client IP.
type writeLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientWindow
	limit    int
	interval time.Duration
	now      func() time.Time

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientWindow struct {
	start    time.Time
	requests int
}

func newWriteLimiter(limit int, interval time.Duration) *writeLimiter {
	l := &writeLimiter{
		clients:     make(map[string]*clientWindow),
		limit:       limit,
		interval:    interval,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go l.startCleanup()
	return l
}

// allow counts a request for client and reports whether it fits the window.
func (l *writeLimiter) allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[client]
	if !ok || now.Sub(w.start) >= l.interval {
		l.clients[client] = &clientWindow{start: now, requests: 1}
		return true
	}
	w.requests++
	return w.requests <= l.limit
}

// startCleanup runs periodic cleanup to remove stale client entries.
func (l *writeLimiter) startCleanup() {
	ticker := time.NewTicker(5 * l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *writeLimiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.interval)
	for ip, w := range l.clients {
		if w.start.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// stop gracefully shuts down the cleanup goroutine.
func (l *writeLimiter) stop() {
	l.shutdownOnce.Do(func() { close(l.stopCleanup) })
}
