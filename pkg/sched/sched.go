// Package sched provides the cancellable-timer abstraction the players and
// the arbiter schedule their completion callbacks on.
//
// All timed waits in go-companion go through a Timer bound to a Clock. Arming
// a Timer cancels whatever callback was pending on it, so "latest call wins"
// holds uniformly: a new rotation selection, a new pause/resume cycle, or a
// new one-shot motion each implicitly cancel the wait they replace.
package sched

import (
	"sort"
	"sync"
	"time"
)

// CancelFunc cancels a scheduled callback. It reports whether the callback
// was still pending when cancelled.
type CancelFunc func() bool

// Clock abstracts time for the scheduler. Production code uses Real; tests
// use Fake to drive completions deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Schedule runs fn after d elapses, unless cancelled first.
	Schedule(d time.Duration, fn func()) CancelFunc
}

// Real is the wall-clock implementation of Clock.
type Real struct{}

// Now returns the wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// Schedule arms a time.AfterFunc timer.
func (Real) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// Timer is a single-slot cancellable timer. At most one callback is pending
// per Timer; Arm replaces any pending callback.
//
// Cancelling an underlying clock timer is best-effort: with the Real clock a
// callback goroutine may already be in flight when its CancelFunc reports
// not-pending. The generation counter makes such stale wrappers harmless —
// only a wrapper whose generation still matches may run its fn or touch the
// cancel handle.
type Timer struct {
	clock Clock

	mu     sync.Mutex
	gen    uint64
	cancel CancelFunc
}

// NewTimer creates a Timer bound to the given clock.
func NewTimer(clock Clock) *Timer {
	return &Timer{clock: clock}
}

// Arm schedules fn to run after d, cancelling any pending callback first.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	gen := t.gen
	t.cancel = t.clock.Schedule(d, func() {
		t.mu.Lock()
		if t.gen != gen {
			// Superseded by a later Arm or Disarm while the underlying
			// timer was already firing.
			t.mu.Unlock()
			return
		}
		t.cancel = nil
		t.mu.Unlock()
		fn()
	})
}

// Disarm cancels the pending callback, if any.
func (t *Timer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Fake is a manually-advanced Clock for tests. Callbacks run inline on the
// goroutine calling Advance, in deadline order, which mirrors the cooperative
// single-tick model the real components assume.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending []*fakeEntry
}

type fakeEntry struct {
	id       int
	deadline time.Time
	fn       func()
}

// NewFake creates a Fake clock starting at a fixed reference time.
func NewFake() *Fake {
	return &Fake{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Schedule registers fn to fire once Advance moves the clock past d.
func (f *Fake) Schedule(d time.Duration, fn func()) CancelFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e := &fakeEntry{id: f.nextID, deadline: f.now.Add(d), fn: fn}
	f.pending = append(f.pending, e)
	id := e.id
	return func() bool { return f.remove(id) }
}

func (f *Fake) remove(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.pending {
		if e.id == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d, firing due callbacks inline in
// deadline order. Callbacks may schedule further timers; those fire too if
// they fall within the advanced window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		sort.SliceStable(f.pending, func(i, j int) bool {
			return f.pending[i].deadline.Before(f.pending[j].deadline)
		})
		var due *fakeEntry
		if len(f.pending) > 0 && !f.pending[0].deadline.After(target) {
			due = f.pending[0]
			f.pending = f.pending[1:]
			f.now = due.deadline
		}
		f.mu.Unlock()

		if due == nil {
			break
		}
		due.fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// PendingCount reports how many callbacks are scheduled.
func (f *Fake) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
