// Package timing provides the precision wait used to align captures
// across nodes.
package timing

import "time"

// DefaultFineThreshold is the remaining-time cutoff below which the
// waiter switches from coarse sleeping to busy polling.
const DefaultFineThreshold = 10 * time.Millisecond

// Waiter blocks until an absolute instant.
type Waiter interface {
	// WaitUntil returns no earlier than target. A target in the past
	// returns immediately; a late trigger is an accuracy problem for the
	// caller to surface, not an error.
	WaitUntil(target time.Time)
}

// HybridWaiter sleeps away most of the wait and busy-polls the clock for
// the final window. OS sleep granularity makes a plain sleep overshoot by
// milliseconds; the busy poll trades one core for sub-millisecond wakeup,
// bounded to the fine threshold so the cost stays fixed. Platforms with a
// better fine-wait primitive can substitute their own Waiter without
// touching the state machine.
type HybridWaiter struct {
	fineThreshold time.Duration
	clock         func() time.Time
	sleep         func(time.Duration)
}

// NewHybridWaiter creates a waiter with the default fine threshold.
func NewHybridWaiter() *HybridWaiter {
	return &HybridWaiter{
		fineThreshold: DefaultFineThreshold,
		clock:         time.Now,
		sleep:         time.Sleep,
	}
}

// WithFineThreshold overrides the busy-poll window.
func (w *HybridWaiter) WithFineThreshold(d time.Duration) *HybridWaiter {
	if d > 0 {
		w.fineThreshold = d
	}
	return w
}

// WaitUntil implements Waiter.
func (w *HybridWaiter) WaitUntil(target time.Time) {
	for {
		remaining := target.Sub(w.clock())
		if remaining <= 0 {
			return
		}
		if remaining <= w.fineThreshold {
			break
		}
		// Coarse phase: sleep up to the edge of the fine window, then
		// re-sample. The loop absorbs oversleep from scheduler jitter.
		w.sleep(remaining - w.fineThreshold)
	}

	// Fine phase: tight poll with no voluntary yield. Monopolizes the
	// goroutine's thread for at most fineThreshold.
	for w.clock().Before(target) {
	}
}
