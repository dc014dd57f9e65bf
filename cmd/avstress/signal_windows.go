//go:build windows

package main

import "os"

// stopSignals are the signals that end a session at the next trial boundary.
// SIGTERM does not exist on Windows.
var stopSignals = []os.Signal{os.Interrupt}
