// Package clock provides the periodic suspension points used by encounter
// countdowns and hiding attempts. Production code runs on Real; tests drive
// Virtual forward synchronously.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Ticker is a handle to a periodic callback.
type Ticker interface {
	// Stop cancels the callback. Safe to call multiple times and from inside
	// the callback itself. Stop does not wait for an invocation already in
	// progress; callbacks that must not act after Stop need their own guard.
	//
	// Postcondition: the callback is not invoked again once any in-progress
	// invocation returns.
	Stop()
}

// Scheduler schedules periodic callbacks.
type Scheduler interface {
	// Every invokes fn once per interval until the returned Ticker is stopped.
	//
	// Precondition: interval > 0; fn must not be nil.
	Every(interval time.Duration, fn func()) Ticker
	// Now returns the scheduler's current time.
	Now() time.Time
}

// Real is a Scheduler backed by the wall clock.
type Real struct{}

// NewReal returns a wall-clock Scheduler.
func NewReal() *Real {
	return &Real{}
}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Every starts a self re-arming time.AfterFunc chain.
//
// Precondition: interval > 0; fn must not be nil.
// Postcondition: Returns a running Ticker.
func (Real) Every(interval time.Duration, fn func()) Ticker {
	rt := &realTicker{interval: interval, fn: fn}
	rt.mu.Lock()
	rt.timer = time.AfterFunc(interval, rt.fire)
	rt.mu.Unlock()
	return rt
}

type realTicker struct {
	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	fn       func()
	stopped  bool
}

func (rt *realTicker) fire() {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return
	}
	rt.mu.Unlock()

	rt.fn()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.stopped {
		rt.timer = time.AfterFunc(rt.interval, rt.fire)
	}
}

// Stop prevents further callbacks. Safe to call multiple times. A callback
// that already passed the stopped check may still finish running.
func (rt *realTicker) Stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.stopped = true
	if rt.timer != nil {
		rt.timer.Stop()
	}
}

// Virtual is a manually advanced Scheduler. Callbacks run synchronously on
// the goroutine calling Advance, in due-time order; callbacks due at the same
// instant run in registration order.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*virtualTicker
	seq   int
}

// NewVirtual returns a Virtual scheduler whose clock starts at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now returns the virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Every registers fn to run each interval of virtual time.
//
// Precondition: interval > 0; fn must not be nil.
func (v *Virtual) Every(interval time.Duration, fn func()) Ticker {
	if interval <= 0 {
		panic("clock: Every called with interval <= 0")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	t := &virtualTicker{
		owner:    v,
		id:       v.seq,
		interval: interval,
		next:     v.now.Add(interval),
		fn:       fn,
	}
	v.tasks = append(v.tasks, t)
	return t
}

// Advance moves virtual time forward by d, running every callback that falls
// due on the way.
//
// Precondition: d >= 0.
// Postcondition: Now() has advanced by exactly d.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		t := v.nextDue(target)
		if t == nil {
			v.now = target
			v.mu.Unlock()
			return
		}
		v.now = t.next
		t.next = t.next.Add(t.interval)
		fn := t.fn
		v.mu.Unlock()

		fn()
	}
}

// Pending returns the number of live tickers.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.tasks)
}

// nextDue returns the earliest live ticker due at or before target.
// Caller holds v.mu.
func (v *Virtual) nextDue(target time.Time) *virtualTicker {
	live := v.tasks[:0]
	for _, t := range v.tasks {
		if !t.stopped {
			live = append(live, t)
		}
	}
	v.tasks = live
	if len(live) == 0 {
		return nil
	}
	due := make([]*virtualTicker, 0, len(live))
	for _, t := range live {
		if !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}

type virtualTicker struct {
	owner    *Virtual
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
	stopped  bool
}

// Stop removes the ticker from its scheduler. Safe to call repeatedly and
// from inside the callback.
func (t *virtualTicker) Stop() {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	t.stopped = true
}
