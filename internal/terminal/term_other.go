//go:build !linux

package terminal

import (
	"context"
	"io"
	"os"
)

// newInputReader reads f directly. A pending read ends only when f is
// closed or delivers another byte, which is then dropped.
func newInputReader(_ context.Context, f *os.File) io.Reader {
	return f
}

// makeRaw leaves the terminal in its current mode; keys arrive after Enter.
func makeRaw(int) (func() error, error) {
	return func() error { return nil }, nil
}

// Size is unknown outside Linux.
func Size(int) (width, height int) {
	return 0, 0
}
