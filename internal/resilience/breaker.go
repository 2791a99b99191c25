// Package resilience keeps the enhancement path usable when an LLM backend
// misbehaves. A [Breaker] sidelines a backend after repeated failures and
// lets a single probe through once a cooldown has passed; a [Chain] strings
// backends together behind the [llm.Provider] interface so callers only ever
// see one provider.
package resilience

import (
	"log/slog"
	"sync"
	"time"
)

const (
	defaultTripThreshold = 5
	defaultCooldown      = 30 * time.Second
)

// BreakerState is the observable mode of a [Breaker].
type BreakerState int

const (
	// BreakerHealthy admits every call.
	BreakerHealthy BreakerState = iota

	// BreakerTripped rejects calls until the cooldown elapses.
	BreakerTripped

	// BreakerProbing admits exactly one call to test recovery.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerHealthy:
		return "healthy"
	case BreakerTripped:
		return "tripped"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerOption configures a [Breaker].
type BreakerOption func(*Breaker)

// WithTripThreshold sets how many consecutive failures sideline the backend.
// Default 5.
func WithTripThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long a tripped backend stays sidelined before one
// probe call is admitted. Default 30s.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// Breaker tracks the health of one backend. Call [Breaker.Allow] before each
// attempt and report the outcome with [Breaker.Success] or [Breaker.Failure].
// While tripped, Allow rejects everything until the cooldown elapses; then a
// single probe is admitted, and its outcome decides between recovery and
// another full cooldown. Safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	tripped   bool
	trippedAt time.Time
	probing   bool
}

// NewBreaker returns a healthy Breaker. The name appears in log lines only.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: defaultTripThreshold,
		cooldown:  defaultCooldown,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Allow reports whether a call may proceed. At most one caller is admitted
// as a probe after the cooldown; concurrent callers during the probe are
// rejected.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return true
	}
	if b.probing {
		return false
	}
	if time.Since(b.trippedAt) >= b.cooldown {
		b.probing = true
		slog.Info("backend breaker probing after cooldown", "backend", b.name)
		return true
	}
	return false
}

// Success records a successful call and restores the backend to healthy.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tripped {
		slog.Info("backend breaker recovered", "backend", b.name)
	}
	b.failures = 0
	b.tripped = false
	b.probing = false
}

// Failure records a failed call. A failed probe restarts the cooldown;
// reaching the trip threshold sidelines the backend.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.probing {
		b.probing = false
		b.trippedAt = time.Now()
		slog.Warn("backend breaker probe failed, sidelining again", "backend", b.name)
		return
	}

	b.failures++
	if !b.tripped && b.failures >= b.threshold {
		b.tripped = true
		b.trippedAt = time.Now()
		slog.Warn("backend breaker tripped",
			"backend", b.name,
			"consecutive_failures", b.failures)
	}
}

// State returns the breaker's current mode. A tripped breaker whose cooldown
// has elapsed still reports [BreakerTripped] until Allow admits the probe.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.probing:
		return BreakerProbing
	case b.tripped:
		return BreakerTripped
	default:
		return BreakerHealthy
	}
}
