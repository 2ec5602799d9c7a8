package generic

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// =============================================================================
// TIMESTAMP - Unix seconds, the resolution of every time gate
// =============================================================================

// Timestamp is a point in time in whole unix seconds. Zero means "never".
type Timestamp uint64

func TimestampOf(t time.Time) Timestamp {
	if t.Unix() < 0 {
		return 0
	}
	return Timestamp(t.Unix())
}

func (ts Timestamp) Time() time.Time { return time.Unix(int64(ts), 0).UTC() }
func (ts Timestamp) IsZero() bool    { return ts == 0 }

// Add returns ts shifted by d, truncated to whole seconds.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return ts + Timestamp(d/time.Second)
}

// Since returns the time elapsed from earlier to ts.
// ok is false when ts is before earlier; callers must treat that as "not elapsed"
// instead of letting the unsigned subtraction wrap.
func (ts Timestamp) Since(earlier Timestamp) (elapsed time.Duration, ok bool) {
	if ts < earlier {
		return 0, false
	}
	return time.Duration(ts-earlier) * time.Second, true
}

func (ts Timestamp) String() string {
	if ts.IsZero() {
		return "never"
	}
	return ts.Time().Format(time.RFC3339)
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current time to operations that gate on it.
type Clock interface {
	Now() Timestamp
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() Timestamp { return TimestampOf(time.Now()) }

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	mu  deadlock.Mutex
	now Timestamp
}

func NewManualClock(start Timestamp) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(ts Timestamp) {
	c.mu.Lock()
	c.now = ts
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d time.Duration) Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
