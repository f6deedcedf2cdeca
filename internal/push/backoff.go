package push

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff computes reconnect delays: exponential growth from Base to Cap,
// with equal jitter so simultaneous clients do not reconnect in lockstep.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration

	mu      sync.Mutex
	attempt int
	rng     *rand.Rand
}

// NewBackoff creates a Backoff with the given base and cap.
func NewBackoff(base, cap time.Duration) *Backoff {
	if base <= 0 {
		base = 5 * time.Second
	}
	if cap < base {
		cap = base
	}
	return &Backoff{
		Base: base,
		Cap:  cap,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next attempt and advances the schedule.
// The delay is uniformly drawn from [d/2, d) where d doubles per attempt up
// to the cap.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.Base << b.attempt
	if d > b.Cap || d <= 0 {
		d = b.Cap
	} else {
		b.attempt++
	}
	half := d / 2
	return half + time.Duration(b.rng.Int63n(int64(half)+1))
}

// Reset restarts the schedule after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}
