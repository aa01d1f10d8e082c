package gameserver

import (
	"sync"
	"time"

	"github.com/cory-johannsen/destiny/internal/game/clock"
)

// PlayClock credits elapsed play time once per interval while started.
type PlayClock struct {
	sched    clock.Scheduler
	interval time.Duration
	credit   func(time.Duration)

	mu     sync.Mutex
	ticker clock.Ticker
}

// NewPlayClock creates a stopped PlayClock.
//
// Precondition: sched and credit must be non-nil; interval > 0.
// Postcondition: Returns a PlayClock ready to Start().
func NewPlayClock(sched clock.Scheduler, interval time.Duration, credit func(time.Duration)) *PlayClock {
	return &PlayClock{sched: sched, interval: interval, credit: credit}
}

// Start begins crediting play time and returns a stop function. Starting a
// running clock returns a stop function for the running ticker.
// Calling stop() is idempotent.
//
// Postcondition: credit receives interval once per interval until stop() is called.
func (c *PlayClock) Start() (stop func()) {
	c.mu.Lock()
	if c.ticker == nil {
		c.ticker = c.sched.Every(c.interval, func() { c.credit(c.interval) })
	}
	t := c.ticker
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			c.mu.Lock()
			if c.ticker == t {
				c.ticker = nil
			}
			c.mu.Unlock()
		})
	}
}

// Running reports whether the clock is started.
func (c *PlayClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}
