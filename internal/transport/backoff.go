package transport

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// MinBackoff is the floor for every reconnect delay. The backend is a local
// process; reconnecting faster than this only burns CPU while it restarts.
const MinBackoff = time.Second

// Backoff describes the reconnect delay policy. The zero value behaves like
// FixedBackoff(MinBackoff).
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64 // <= 1 means a fixed delay
	Jitter     bool    // lengthen each delay by a random factor in [1.0, 1.1]
}

// DefaultBackoff doubles from one second up to thirty.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    MinBackoff,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}
}

// FixedBackoff waits d (at least MinBackoff) before every attempt.
func FixedBackoff(d time.Duration) Backoff {
	return Backoff{Initial: d, Max: d, Multiplier: 1}
}

var (
	jitterMu  sync.Mutex
	jitterRnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Delay returns the wait before reconnect attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial < MinBackoff {
		initial = MinBackoff
	}
	maxDelay := b.Max
	if maxDelay < initial {
		maxDelay = initial
	}

	d := float64(initial)
	if b.Multiplier > 1 && attempt > 0 {
		d *= math.Pow(b.Multiplier, float64(attempt))
	}
	if d > float64(maxDelay) || math.IsInf(d, 0) {
		d = float64(maxDelay)
	}

	if b.Jitter {
		jitterMu.Lock()
		d *= 1 + jitterRnd.Float64()*0.10
		jitterMu.Unlock()
	}

	delay := time.Duration(d)
	if delay < MinBackoff {
		delay = MinBackoff
	}
	return delay
}
