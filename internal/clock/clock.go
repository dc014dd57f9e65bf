// Package clock provides the monotonic time base shared by stimulus onset and
// input event timestamps. Reaction times are differences of two Instants read
// from the same source, never wall-clock times.
package clock

import (
	"time"
)

// Instant is a monotonic reading in nanoseconds from an arbitrary origin.
type Instant int64

// Sub returns the duration i-j.
func (i Instant) Sub(j Instant) time.Duration {
	return time.Duration(i - j)
}

// Add returns i shifted by d.
func (i Instant) Add(d time.Duration) Instant {
	return i + Instant(d)
}

// Now reads the monotonic clock.
func Now() Instant {
	return monotonic()
}

var origin = time.Now()

// fallback derives an Instant from the runtime's monotonic reading.
func fallback() Instant {
	return Instant(time.Since(origin))
}

// Sync is the per-trial synchronization clock. Its zero point is captured
// immediately before the stimuli are issued and is the reference for the
// reaction time of that trial only.
type Sync struct {
	onset Instant
}

// NewSync creates a clock whose zero point is now.
func NewSync() *Sync {
	return &Sync{onset: Now()}
}

// Reset moves the zero point to now and returns it.
func (s *Sync) Reset() Instant {
	s.onset = Now()
	return s.onset
}

// Onset returns the zero point.
func (s *Sync) Onset() Instant {
	return s.onset
}

// Since returns the time from the zero point to at.
func (s *Sync) Since(at Instant) time.Duration {
	return at.Sub(s.onset)
}

// Elapsed returns the time from the zero point to now.
func (s *Sync) Elapsed() time.Duration {
	return s.Since(Now())
}

// At returns a clock pinned to a known zero point.
func At(onset Instant) *Sync {
	return &Sync{onset: onset}
}
