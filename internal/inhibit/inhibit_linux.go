//go:build linux

package inhibit

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	screenSaverDest  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	screenSaverIface = "org.freedesktop.ScreenSaver"
)

// ScreenSaver inhibits through org.freedesktop.ScreenSaver on the session
// bus.
type ScreenSaver struct {
	app string
}

// New creates an inhibitor that identifies itself as app.
func New(app string) *ScreenSaver {
	return &ScreenSaver{app: app}
}

// Inhibit asks the session to stay awake until release is called.
func (s *ScreenSaver) Inhibit(reason string) (func() error, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("inhibit: connect session bus: %w", err)
	}

	obj := conn.Object(screenSaverDest, screenSaverPath)
	var cookie uint32
	if err := obj.Call(screenSaverIface+".Inhibit", 0, s.app, reason).Store(&cookie); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inhibit: %w", err)
	}

	var once sync.Once
	var releaseErr error
	release := func() error {
		once.Do(func() {
			defer conn.Close()
			if call := obj.Call(screenSaverIface+".UnInhibit", 0, cookie); call.Err != nil {
				releaseErr = fmt.Errorf("inhibit: release: %w", call.Err)
			}
		})
		return releaseErr
	}
	return release, nil
}
