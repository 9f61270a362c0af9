package runner

import "time"

// Clock abstracts time so the tick loop's sleep between ticks can be driven
// deterministically in tests (the stuck-entry sweep's staleness check uses
// the store's own time.Now, not this Clock), grounded on internal/analysis/jobqueue's
// Clock/RealClock pair (generalized here from a generic action queue to the
// entry pipeline's own tick-and-heartbeat timing).
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock is the default Clock, backed by the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }
