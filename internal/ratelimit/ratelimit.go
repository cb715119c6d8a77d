// Package ratelimit gates how often a user may start a new retrieval.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a per-user sliding window limiter.
type Limiter struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int
	requests map[int64][]time.Time
	now      func() time.Time
}

// New builds a limiter allowing limit requests per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		window:   window,
		limit:    limit,
		requests: make(map[int64][]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether the user may proceed. When denied, wait is how long
// until the oldest in-window request expires.
func (l *Limiter) Allow(userID int64) (allowed bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.requests[userID][:0]
	for _, t := range l.requests[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.requests[userID] = recent
		return false, recent[0].Sub(cutoff)
	}

	l.requests[userID] = append(recent, now)
	return true, 0
}
