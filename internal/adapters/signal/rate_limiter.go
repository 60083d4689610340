package signal

import (
	"sync"
	"time"
)

// ReconnectLimiter allows at most limit attempts per sliding interval.
// A limit of zero disables reconnection.
type ReconnectLimiter struct {
	mu       sync.Mutex
	history  []time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewReconnectLimiter(limit int, interval time.Duration) *ReconnectLimiter {
	return &ReconnectLimiter{
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *ReconnectLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.limit <= 0 {
		return false
	}

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	fresh := rl.history[:0]
	for _, t := range rl.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	rl.history = fresh

	if len(fresh) >= rl.limit {
		return false
	}
	rl.history = append(rl.history, now)
	return true
}
