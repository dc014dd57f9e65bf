// Package block runs one block of trials: fixation, stimulus onset, response
// window, scoring, logging and the inter-trial interval, strictly in order.
package block

import (
	"fmt"
	"time"

	"avstress/internal/iti"
	"avstress/internal/trial"
)

// Config describes one block.
type Config struct {
	// Num is the block number written to the log.
	Num int

	Types       []trial.Type
	TotalTrials int

	ITI        iti.Range
	Adapting   bool
	AdaptStart time.Duration
	AdaptEnd   time.Duration
}

// ConfigError reports a malformed block configuration. It is returned before
// any trial is presented.
type ConfigError struct {
	Block   int
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("block %d: %s: %s", e.Block, e.Field, e.Message)
}

// Validate checks the configuration. A block whose total is smaller than the
// number of types is valid but yields no trials.
func (c Config) Validate() error {
	if len(c.Types) == 0 {
		return &ConfigError{Block: c.Num, Field: "types", Message: "at least one trial type is required"}
	}
	seen := make(map[trial.Type]bool, len(c.Types))
	for _, t := range c.Types {
		if seen[t] {
			return &ConfigError{Block: c.Num, Field: "types", Message: "duplicate type " + t.String()}
		}
		seen[t] = true
	}
	if c.TotalTrials <= 0 {
		return &ConfigError{Block: c.Num, Field: "total_trials", Message: "must be positive"}
	}
	if c.Adapting {
		if c.AdaptStart < 0 || c.AdaptEnd < 0 {
			return &ConfigError{Block: c.Num, Field: "adapt", Message: "adapting bounds must not be negative"}
		}
		if c.AdaptStart <= c.AdaptEnd {
			return &ConfigError{Block: c.Num, Field: "adapt", Message: fmt.Sprintf(
				"adapting interval must shrink, got %s to %s", c.AdaptStart, c.AdaptEnd)}
		}
		if n := c.Trials(); n == 1 {
			return &ConfigError{Block: c.Num, Field: "total_trials", Message: iti.ErrSingleTrialAdapting.Error()}
		}
		return nil
	}
	if err := c.ITI.Validate(); err != nil {
		return &ConfigError{Block: c.Num, Field: "iti", Message: err.Error()}
	}
	return nil
}

// Trials returns how many trials the block will actually present.
func (c Config) Trials() int {
	return trial.PerType(c.Types, c.TotalTrials) * len(c.Types)
}

// Params returns the ITI schedule parameters.
func (c Config) Params() iti.Params {
	return iti.Params{
		Range:      c.ITI,
		Adapting:   c.Adapting,
		AdaptStart: c.AdaptStart,
		AdaptEnd:   c.AdaptEnd,
	}
}

// Summary counts the outcomes of a run.
type Summary struct {
	Block     int
	Planned   int
	Completed int
	Responses int
	Correct   int
	Incorrect int
	NA        int
	Duration  time.Duration
}

// MeanAccuracy returns correct over scored trials, 0 when nothing was scored.
func (s Summary) MeanAccuracy() float64 {
	scored := s.Correct + s.Incorrect
	if scored == 0 {
		return 0
	}
	return float64(s.Correct) / float64(scored)
}
