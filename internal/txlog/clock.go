package txlog

import "sync/atomic"

// Clock stamps transactions and symbol entries with strictly increasing
// sequence numbers. Visible entries sort by these stamps rather than by wall
// time, which keeps a replayed session in the same order as the original.
//
// Sessions are single-threaded. The counter is atomic so the journal can read
// Current while a command runs.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock that has already handed out last. Replay uses it
// to resume numbering after a journaled session.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

// Next hands out the next stamp.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current is the most recent stamp handed out, or the starting value.
func (c *Clock) Current() int64 { return c.last.Load() }
