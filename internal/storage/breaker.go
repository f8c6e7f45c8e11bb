package storage

import (
	"sync"
	"time"
)

// Breaker is a process-wide circuit breaker for database connectivity.
// It has two states: closed (normal operation) and open until a deadline.
// While open, callers fail fast instead of touching the connection pool.
// The clock is injected so the cooldown window is testable.
type Breaker struct {
	mu        sync.Mutex
	cooldown  time.Duration
	now       func() time.Time
	openUntil time.Time
}

func NewBreaker(cooldown time.Duration, now func() time.Time) *Breaker {
	if now == nil {
		now = time.Now
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Second
	}
	return &Breaker{cooldown: cooldown, now: now}
}

// Allow reports whether a live storage attempt may proceed. Once the
// cooldown deadline passes the breaker closes again.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openUntil.IsZero() {
		return true
	}
	if b.now().Before(b.openUntil) {
		return false
	}
	b.openUntil = time.Time{}
	return true
}

// Trip opens the breaker for one cooldown window starting now.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openUntil = b.now().Add(b.cooldown)
}
