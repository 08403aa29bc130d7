package session

import "time"

// Timer is a pending callback. Stop is advisory: a callback racing Stop may
// still run, so callbacks must re-validate state.
type Timer interface {
	Stop() bool
}

// Clock supplies time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is the wall clock.
func RealClock() Clock { return realClock{} }

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
