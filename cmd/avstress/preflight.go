package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"avstress/internal/config"
	"avstress/internal/health"
	"avstress/internal/session"
)

// minFreeSpace is the free disk space a station needs for logs.
const minFreeSpace = 64 << 20

// newPreflight registers the station checks for cfg. The trial log check
// is added only when the participant is known.
func newPreflight(cfg *config.Config, participant string) *health.Checker {
	c := health.NewChecker()
	c.RegisterFunc("data_dir", true, health.DataDirCheck(cfg.Session.DataDir))
	c.RegisterFunc("disk_space", false, health.DiskSpaceCheck(cfg.Session.DataDir, minFreeSpace))
	c.RegisterFunc("stimuli", true, health.StimuliCheck(cfg.Stimuli.Dir, cfg.Stimuli.Ext, cfg.Stimuli.SampleRate))
	c.RegisterFunc("clock", false, health.ClockCheck(time.Millisecond))
	if participant != "" {
		c.RegisterFunc("trial_log", false, health.LogAbsentCheck(session.LogPath(cfg.Session.DataDir, participant)))
	}
	return c
}

// runPreflight prints every problem found and fails on critical ones.
func runPreflight(ctx context.Context, w io.Writer, c *health.Checker) (health.Report, error) {
	report := c.Run(ctx)
	for _, r := range report.Failed() {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		if r.Error != "" {
			line += " (" + r.Error + ")"
		}
		fmt.Fprintf(w, "  [%s] %s\n", r.Status, line)
	}
	if report.Status == health.StatusUnhealthy {
		return report, fmt.Errorf("preflight failed")
	}
	return report, nil
}
