package kafka

import (
	"sync/atomic"
	"time"
)

/* ───────────────────────── commit cadence ────────────────────── */

// Cadence decides *when* a driver should flush marked offsets. Marking
// happens after every handled message; committing at most once per period.
type Cadence struct {
	everyNS  int64
	lastNS   atomic.Int64
	nowNanos func() int64
}

func NewCadence(every time.Duration) *Cadence {
	return &Cadence{
		everyNS:  every.Nanoseconds(),
		nowNanos: func() int64 { return time.Now().UnixNano() },
	}
}

// Due reports whether a commit is due now and, if so, restarts the period.
// A zero period commits after every message.
func (c *Cadence) Due() bool {
	now := c.nowNanos()
	last := c.lastNS.Load()
	if last+c.everyNS > now {
		return false
	}
	return c.lastNS.CompareAndSwap(last, now)
}
