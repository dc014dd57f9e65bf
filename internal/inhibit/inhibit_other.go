//go:build !linux

package inhibit

// ScreenSaver is unavailable outside Linux.
type ScreenSaver struct{}

// New returns an inhibitor that always reports ErrUnsupported.
func New(string) *ScreenSaver {
	return &ScreenSaver{}
}

// Inhibit reports ErrUnsupported.
func (s *ScreenSaver) Inhibit(string) (func() error, error) {
	return nil, ErrUnsupported
}
