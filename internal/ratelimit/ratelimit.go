// Package ratelimit provides per-client sliding window admission control.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Defaults for the simulated upstream endpoint.
const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

var deniedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "esgqa_ratelimit_denied_total",
		Help: "Total number of requests denied by the rate limiter.",
	},
)

func init() {
	prometheus.MustRegister(deniedTotal)
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(key string) bool
}

var _ Limiter = (*SlidingWindow)(nil)

// SlidingWindow keeps the timestamps of admitted requests per key and admits
// a request while fewer than limit fall inside the trailing window. Denied
// requests are not recorded. Keys idle for a full window are swept at most
// once per window.
type SlidingWindow struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	now       func() time.Time
	windows   map[string][]time.Time
	lastSweep time.Time
}

// NewSlidingWindow creates an in-process limiter.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// Allow prunes stale timestamps for key and records now if under the limit.
func (l *SlidingWindow) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweepLocked(start)
		l.lastSweep = now
	}

	ts := l.windows[key]
	i := 0
	for i < len(ts) && !ts[i].After(start) {
		i++
	}
	ts = ts[i:]

	if len(ts) >= l.limit {
		l.windows[key] = ts
		deniedTotal.Inc()
		return false
	}

	l.windows[key] = append(ts, now)
	return true
}

// sweepLocked drops keys whose newest timestamp is outside the window.
func (l *SlidingWindow) sweepLocked(start time.Time) {
	for key, ts := range l.windows {
		if len(ts) == 0 || !ts[len(ts)-1].After(start) {
			delete(l.windows, key)
		}
	}
}

// Clients returns the number of keys currently tracked.
func (l *SlidingWindow) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Len returns the number of timestamps currently held for key, including
// ones that have gone stale since the last Allow.
func (l *SlidingWindow) Len(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows[key])
}
