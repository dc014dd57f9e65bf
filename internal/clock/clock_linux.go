//go:build linux

package clock

import (
	"golang.org/x/sys/unix"
)

// monotonic reads CLOCK_MONOTONIC directly so event sources outside the Go
// runtime (evdev, audio callbacks) can be compared against the same base.
func monotonic() Instant {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallback()
	}
	return Instant(ts.Nano())
}
