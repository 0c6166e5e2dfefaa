package engine

import (
	"math/rand/v2"
	"time"

	"github.com/seantiz/esgqa/internal/store"
)

// Random is the source of randomness used for delays, outcomes and answer
// content. Implementations must be safe for concurrent use.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// globalRandom uses the concurrency-safe top-level math/rand/v2 functions.
type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }
func (globalRandom) IntN(n int) int   { return rand.IntN(n) }

// Range is a closed interval of durations sampled uniformly.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pick samples a duration from r.
func (r Range) Pick(rnd Random) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rnd.Float64()*float64(r.Max-r.Min))
}

// Options tunes the simulated timing and outcome distributions.
type Options struct {
	// QueueDelay is how long a job stays queued before it starts running.
	QueueDelay Range
	// RunDelay is how long a job runs before reaching a terminal state.
	RunDelay Range
	// FailureRate is the probability a running job ends failed.
	FailureRate float64
	// FaultRate is the probability an answer carries an out-of-range confidence.
	FaultRate   float64
	HistorySize int
	Random      Random
}

// DefaultOptions returns the production timing: 1-3s queued, 2-7s running,
// 10% failures and 5% faulty confidence values.
func DefaultOptions() Options {
	return Options{
		QueueDelay:  Range{Min: 1 * time.Second, Max: 3 * time.Second},
		RunDelay:    Range{Min: 2 * time.Second, Max: 7 * time.Second},
		FailureRate: 0.10,
		FaultRate:   0.05,
		HistorySize: store.DefaultHistorySize,
		Random:      globalRandom{},
	}
}
