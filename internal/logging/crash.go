package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"
)

// CrashReport is written when a session panics, next to the trial log it
// interrupted.
type CrashReport struct {
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
	GOOS        string    `json:"goos"`
	GOARCH      string    `json:"goarch"`
	Participant string    `json:"participant,omitempty"`
	PanicValue  string    `json:"panic_value"`
	StackTrace  string    `json:"stack_trace"`
}

// CrashHandler records panics of a running session.
type CrashHandler struct {
	dir         string
	version     string
	participant string
	logger      *Logger
}

// NewCrashHandler creates a handler writing reports to dir.
func NewCrashHandler(dir, version, participant string, logger *Logger) *CrashHandler {
	return &CrashHandler{dir: dir, version: version, participant: participant, logger: logger}
}

// Recover must be deferred. It writes a report for a panic in progress and
// re-panics so the process still exits non-zero.
func (h *CrashHandler) Recover() {
	v := recover()
	if v == nil {
		return
	}
	path, err := h.Write(v, debug.Stack())
	if h.logger != nil {
		if err != nil {
			h.logger.Error("crash report not written", "panic", fmt.Sprint(v), "error", err)
		} else {
			h.logger.Error("session crashed", "panic", fmt.Sprint(v), "report", path)
		}
	}
	panic(v)
}

// Write stores a report for value and returns its path.
func (h *CrashHandler) Write(value any, stack []byte) (string, error) {
	report := CrashReport{
		Timestamp:   time.Now().UTC(),
		Version:     h.version,
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		Participant: h.participant,
		PanicValue:  fmt.Sprint(value),
		StackTrace:  string(stack),
	}

	if err := os.MkdirAll(h.dir, 0750); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	name := fmt.Sprintf("crash-%s.json", report.Timestamp.Format("20060102-150405"))
	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}
