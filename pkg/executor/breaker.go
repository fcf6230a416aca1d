package executor

import (
	"time"
)

// State is the position of a component's circuit
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// breaker counts consecutive failed executions of one component
type breaker struct {
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	trips     int
}

func (b *breaker) state(now time.Time) State {
	switch {
	case b.openUntil.IsZero():
		return StateClosed
	case now.Before(b.openUntil):
		return StateOpen
	default:
		return StateHalfOpen
	}
}

func (b *breaker) recordSuccess() {
	b.failures = 0
	b.openUntil = time.Time{}
}

// recordFailure returns true when this failure opened the circuit. A failed
// half-open trial call reopens it immediately.
func (b *breaker) recordFailure(now time.Time) bool {
	if b.state(now) == StateHalfOpen {
		b.open(now)
		return true
	}
	b.failures++
	if b.failures >= max(1, b.threshold) {
		b.open(now)
		return true
	}
	return false
}

func (b *breaker) open(now time.Time) {
	b.failures = 0
	b.trips++
	b.openUntil = now.Add(b.cooldown)
}
