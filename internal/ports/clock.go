package ports

import "time"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Scheduler runs deferred callbacks. The returned func cancels a callback
// that has not fired yet and reports whether it did.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type SystemScheduler struct{}

func (SystemScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}
