// Package clock abstracts time for the session service so that timers driving auto usage, mock
// mining and status polling can run on virtual time in tests.
//
// Components take a Clock at construction; only cmd/ and app wiring create a Real clock.
package clock

import (
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the timer was still active.
	Stop() bool
}

// Clock provides the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d.
	AfterFunc(d time.Duration, f func()) Timer
	// Every runs f repeatedly, every d, until the returned Timer is stopped.
	Every(d time.Duration, f func()) Timer
}

// Real is backed by the time package.
type Real struct{}

// NewReal returns the wall clock.
func NewReal() Clock {
	return Real{}
}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Every starts a goroutine driven by a time.Ticker.
func (Real) Every(d time.Duration, f func()) Timer {
	t := &realTicker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.loop(f)
	return t
}

type realTicker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *realTicker) loop(f func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			select {
			case <-t.done:
				return
			default:
			}
			f()
		}
	}
}

func (t *realTicker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}

var (
	_ Clock = Real{}
	_ Timer = (*realTicker)(nil)
	_ Timer = (*time.Timer)(nil)
)
