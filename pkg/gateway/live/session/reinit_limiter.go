package session

import "time"

// reinitLimiter is a token bucket over recognition channel re-creations.
// Each token allows one reinit; one token is restored every interval up to
// burst.
type reinitLimiter struct {
	now        func() time.Time
	burst      int
	interval   time.Duration
	tokens     int
	lastRefill time.Time
}

func newReinitLimiter(now func() time.Time, burst int, interval time.Duration) *reinitLimiter {
	if burst <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &reinitLimiter{
		now:        now,
		burst:      burst,
		interval:   interval,
		tokens:     burst,
		lastRefill: now(),
	}
}

func (l *reinitLimiter) Allow() bool {
	if l == nil {
		return true
	}
	l.refill()
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// RetryAfter reports how long until the next token is available.
func (l *reinitLimiter) RetryAfter() time.Duration {
	if l == nil {
		return 0
	}
	l.refill()
	if l.tokens > 0 {
		return 0
	}
	return l.interval - l.now().Sub(l.lastRefill)
}

func (l *reinitLimiter) refill() {
	now := l.now()
	if l.tokens >= l.burst {
		l.lastRefill = now
		return
	}
	elapsed := now.Sub(l.lastRefill)
	if elapsed < l.interval {
		return
	}
	add := int(elapsed / l.interval)
	l.tokens += add
	l.lastRefill = l.lastRefill.Add(time.Duration(add) * l.interval)
	if l.tokens >= l.burst {
		l.tokens = l.burst
		l.lastRefill = now
	}
}
