// Package ratelimit implements the fixed-window inbound limiter that protects
// the service itself, keyed by caller identity.
package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// WindowState is a point-in-time view of one caller's window, exposed on the
// admin surface.
type WindowState struct {
	Key         string    `json:"key"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

type window struct {
	count int
	start time.Time
}

// Limiter counts requests per caller key in fixed windows. Checking is
// counting: every IsRateLimited call records the observation, even when the
// verdict is "not limited". Windows are created lazily and live for the
// process lifetime; cardinality is assumed bounded (internal callers).
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	interval time.Duration
	clock    func() time.Time
}

// New returns a limiter allowing limit requests per interval for each key.
func New(limit int, interval time.Duration) *Limiter {
	if limit <= 0 {
		limit = 60
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		interval: interval,
		clock:    time.Now,
	}
}

// IsRateLimited records one observation for key and reports whether the
// caller has exceeded the window's budget. The Nth request within a window
// (N = limit) is still permitted; only the (N+1)th is rejected. The count
// keeps accumulating while saturated, so the caller stays limited until the
// window rolls over.
func (l *Limiter) IsRateLimited(key string) bool {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		l.windows[key] = &window{count: 1, start: now}
		return false
	}

	if now.Sub(w.start) >= l.interval {
		w.count = 1
		w.start = now
		return false
	}

	w.count++
	return w.count > l.limit
}

// RetryAfter returns how long the given key must wait for its current window
// to roll over. Zero when the key has no window or the window has already
// expired.
func (l *Limiter) RetryAfter(key string) time.Duration {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	remaining := l.interval - now.Sub(w.start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns the current window for every known key, sorted by key.
func (l *Limiter) Snapshot() []WindowState {
	l.mu.Lock()
	defer l.mu.Unlock()

	states := make([]WindowState, 0, len(l.windows))
	for key, w := range l.windows {
		states = append(states, WindowState{
			Key:         key,
			Count:       w.count,
			WindowStart: w.start,
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
	return states
}

// Reset discards the window for key, reporting whether one existed.
func (l *Limiter) Reset(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.windows[key]
	delete(l.windows, key)
	return ok
}

// Limit returns the configured per-window budget.
func (l *Limiter) Limit() int { return l.limit }

// Interval returns the configured window length.
func (l *Limiter) Interval() time.Duration { return l.interval }
