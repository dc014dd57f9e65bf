//go:build !windows

package main

import (
	"os"
	"syscall"
)

// stopSignals are the signals that end a session at the next trial boundary.
var stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
