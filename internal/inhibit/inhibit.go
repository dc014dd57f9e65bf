// Package inhibit keeps the desktop from blanking the screen or starting a
// screensaver while a session runs.
package inhibit

import "errors"

// ErrUnsupported is returned where no inhibit mechanism exists.
var ErrUnsupported = errors.New("inhibit: not supported on this platform")

// Nop never inhibits anything. It is used in simulations.
type Nop struct{}

// Inhibit returns a no-op release.
func (Nop) Inhibit(string) (func() error, error) {
	return func() error { return nil }, nil
}
