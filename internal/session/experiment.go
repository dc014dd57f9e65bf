package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"avstress/internal/block"
	"avstress/internal/present"
	"avstress/internal/response"
)

// Screens is the participant-facing copy and its timing.
type Screens struct {
	Intro        []string
	PracticeDone string
	Break        string
	Closing      string

	// Continue is appended to a screen once it may be dismissed.
	Continue    string
	ContinueKey string

	// MinDisplay is how long an instruction screen stays up before it can
	// be dismissed. BreakDisplay does the same for breaks and the closing
	// screen.
	MinDisplay   time.Duration
	BreakDisplay time.Duration
}

// Inhibitor keeps the display awake while a session runs.
type Inhibitor interface {
	Inhibit(reason string) (release func() error, err error)
}

// Experiment is one participant's full session.
type Experiment struct {
	Participant string

	Runner       *block.Runner
	Synchronizer *present.Synchronizer
	Input        response.Input

	// Practice is run unlogged before the first block when set.
	Practice *block.Config
	Blocks   []block.Config

	Screens   Screens
	Inhibitor Inhibitor
	Logger    *slog.Logger
	Sleep     block.SleepFunc
}

// Report summarizes a session.
type Report struct {
	Participant string
	Practice    *block.Summary
	Blocks      []block.Summary
	Started     time.Time
	Finished    time.Time
}

// Trials returns the number of logged trials.
func (r Report) Trials() int {
	n := 0
	for _, b := range r.Blocks {
		n += b.Completed
	}
	return n
}

// Run executes the session. It stops at the first error; blocks already
// completed stay in the log and in the returned report.
func (e *Experiment) Run(ctx context.Context) (Report, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("participant", e.Participant)
	if e.Sleep == nil {
		e.Sleep = block.Sleep
	}

	report := Report{Participant: e.Participant, Started: time.Now()}

	for _, cfg := range e.Blocks {
		if err := cfg.Validate(); err != nil {
			return e.finish(report, err)
		}
	}

	if e.Inhibitor != nil {
		release, err := e.Inhibitor.Inhibit("avstress session " + e.Participant)
		if err != nil {
			logger.Warn("screensaver inhibit failed", "error", err)
		} else {
			defer func() {
				if err := release(); err != nil {
					logger.Warn("screensaver release failed", "error", err)
				}
			}()
		}
	}
	defer e.Synchronizer.Stop()

	logger.Info("session started", "blocks", len(e.Blocks), "practice", e.Practice != nil)

	for _, text := range e.Screens.Intro {
		if err := e.instructions(ctx, text, e.Screens.MinDisplay); err != nil {
			return e.finish(report, err)
		}
	}

	if e.Practice != nil {
		summary, err := e.Runner.Practice(ctx, *e.Practice, e.Participant)
		if err != nil {
			return e.finish(report, fmt.Errorf("practice: %w", err))
		}
		report.Practice = &summary
		if e.Screens.PracticeDone != "" {
			if err := e.instructions(ctx, e.Screens.PracticeDone, e.Screens.MinDisplay); err != nil {
				return e.finish(report, err)
			}
		}
	}

	for i, cfg := range e.Blocks {
		summary, err := e.Runner.Run(ctx, cfg, e.Participant)
		report.Blocks = append(report.Blocks, summary)
		if err != nil {
			return e.finish(report, err)
		}
		if i < len(e.Blocks)-1 && e.Screens.Break != "" {
			if err := e.instructions(ctx, e.Screens.Break, e.Screens.BreakDisplay); err != nil {
				return e.finish(report, err)
			}
		}
	}

	if e.Screens.Closing != "" {
		if err := e.Synchronizer.Text(e.Screens.Closing); err != nil {
			return e.finish(report, err)
		}
		if err := e.Sleep(ctx, e.Screens.BreakDisplay); err != nil {
			return e.finish(report, err)
		}
		if err := e.Synchronizer.Blank(); err != nil {
			return e.finish(report, err)
		}
	}

	report.Finished = time.Now()
	logger.Info("session finished", "trials", report.Trials(), "duration", report.Finished.Sub(report.Started))
	return report, nil
}

func (e *Experiment) finish(report Report, err error) (Report, error) {
	report.Finished = time.Now()
	level := slog.LevelError
	if errors.Is(err, context.Canceled) {
		level = slog.LevelWarn
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), level, "session stopped", "participant", e.Participant, "trials", report.Trials(), "error", err)
	return report, err
}

// instructions shows text for at least min, then adds the continue prompt
// and waits for the continue key.
func (e *Experiment) instructions(ctx context.Context, text string, min time.Duration) error {
	if err := e.Synchronizer.Text(text); err != nil {
		return err
	}
	if err := e.Sleep(ctx, min); err != nil {
		return err
	}

	if err := e.Input.ClearPendingKeys(); err != nil {
		return fmt.Errorf("clear input: %w", err)
	}
	prompt := text
	if e.Screens.Continue != "" {
		prompt = text + "\n\n" + e.Screens.Continue
	}
	if err := e.Synchronizer.Text(prompt); err != nil {
		return err
	}
	if _, _, err := e.Input.WaitForKey(ctx, []string{e.Screens.ContinueKey}, 0); err != nil {
		return err
	}
	return e.Synchronizer.Blank()
}
