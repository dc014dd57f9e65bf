//go:build !linux

package clock

func monotonic() Instant {
	return fallback()
}
