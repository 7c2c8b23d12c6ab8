package factcheck

import (
	"sync"
	"time"
)

// cooldownLimiter enforces a per-user minimum interval between requests.
// State lives for the process lifetime and only ever advances: a denied
// request does not touch the stored timestamp.
type cooldownLimiter struct {
	cooldown time.Duration
	clock    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func newCooldownLimiter(cooldown time.Duration, clock func() time.Time) *cooldownLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &cooldownLimiter{
		cooldown: cooldown,
		clock:    clock,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether userID may proceed now. The first request from a
// user is always allowed. Check and timestamp update are one atomic step so
// concurrent requests from one user cannot both pass.
func (l *cooldownLimiter) Allow(userID string) bool {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, seen := l.last[userID]; seen && now.Sub(last) < l.cooldown {
		return false
	}
	l.last[userID] = now
	return true
}
