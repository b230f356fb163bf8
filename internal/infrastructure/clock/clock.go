// Package clock abstracts the time source used by the wizard synchronizer
// so debounce windows can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package the portal schedules against.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed and returns a handle to cancel it.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer cancels a pending AfterFunc call.
type Timer interface {
	// Stop reports whether the call was still pending.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
