package game

import "time"

// roundClock drives a Flying phase: a fixed-period ticker that does not
// drift with tick processing time, plus the one-shot late bet deadline.
type roundClock struct {
	ticker *time.Ticker
	late   *time.Timer
}

func startRoundClock(interval, lateWindow time.Duration) *roundClock {
	c := &roundClock{ticker: time.NewTicker(interval)}
	if lateWindow > 0 {
		c.late = time.NewTimer(lateWindow)
	}
	return c
}

// Ticks is nil on a stopped clock, which blocks forever in a select.
func (c *roundClock) Ticks() <-chan time.Time {
	if c == nil || c.ticker == nil {
		return nil
	}
	return c.ticker.C
}

func (c *roundClock) LateDeadline() <-chan time.Time {
	if c == nil || c.late == nil {
		return nil
	}
	return c.late.C
}

func (c *roundClock) lateFired() {
	if c != nil {
		c.late = nil
	}
}

func (c *roundClock) Stop() {
	if c == nil {
		return
	}
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.late != nil {
		c.late.Stop()
		c.late = nil
	}
}
