package dispatch

import (
	"sync"
	"sync/atomic"
	"time"
)

// logLimiter caps how many log lines one error class may emit per window.
// Counts are kept per key and reset when the window rotates.
type logLimiter struct {
	mu           sync.Mutex
	current      map[string]*atomic.Int64
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int64

	suppressed atomic.Int64
}

func newLogLimiter(maxPerWindow int, window time.Duration) *logLimiter {
	if maxPerWindow <= 0 {
		maxPerWindow = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &logLimiter{
		current:      make(map[string]*atomic.Int64),
		windowStart:  time.Now(),
		windowSize:   window,
		maxPerWindow: int64(maxPerWindow),
	}
}

// Allow reports whether a line for key may be logged at now.
func (l *logLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	if now.Sub(l.windowStart) >= l.windowSize {
		l.current = make(map[string]*atomic.Int64)
		l.windowStart = now
	}
	counter, ok := l.current[key]
	if !ok {
		counter = &atomic.Int64{}
		l.current[key] = counter
	}
	l.mu.Unlock()

	if counter.Add(1) > l.maxPerWindow {
		l.suppressed.Add(1)
		return false
	}
	return true
}

// Suppressed returns the total number of lines withheld.
func (l *logLimiter) Suppressed() int64 {
	return l.suppressed.Load()
}
