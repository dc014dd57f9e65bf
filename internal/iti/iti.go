// Package iti computes inter-trial intervals: uniform draws for ordinary
// blocks and a linear ramp for the adapting block.
package iti

import (
	"errors"
	"fmt"
	"math"
	mathrand "math/rand/v2"
	"time"
)

// Errors
var (
	ErrSingleTrialAdapting = errors.New("iti: adapting schedule needs at least two trials")
	ErrIndexOutOfRange     = errors.New("iti: trial index out of range")
	ErrInvalidRange        = errors.New("iti: invalid range")
)

// Range is a closed interval of delays.
type Range struct {
	Lo time.Duration
	Hi time.Duration
}

// Validate checks 0 <= Lo <= Hi.
func (r Range) Validate() error {
	if r.Lo < 0 || r.Hi < r.Lo {
		return fmt.Errorf("%w: [%s, %s]", ErrInvalidRange, r.Lo, r.Hi)
	}
	return nil
}

// Params configures a block's schedule.
type Params struct {
	Range      Range
	Adapting   bool
	AdaptStart time.Duration
	AdaptEnd   time.Duration
}

// Delay is one scheduled interval.
type Delay struct {
	// Wait is the exact interval to hold.
	Wait time.Duration

	// Seconds is Wait rounded to milliseconds, the value written to the log.
	Seconds float64
}

// Round returns d in seconds rounded to three decimals.
func Round(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

func newDelay(d time.Duration) Delay {
	return Delay{Wait: d, Seconds: Round(d)}
}

// Scheduler draws delays for one block.
type Scheduler struct {
	params Params
	rng    *mathrand.Rand
}

// NewScheduler creates a scheduler. rng is only used for non-adapting blocks.
func NewScheduler(params Params, rng *mathrand.Rand) *Scheduler {
	return &Scheduler{params: params, rng: rng}
}

// Next returns the delay after trial index of total.
func (s *Scheduler) Next(index, total int) (Delay, error) {
	return NextDelay(s.rng, s.params, index, total)
}

// NextDelay computes the delay following trial index (0-based) in a block of
// total trials. An adapting block interpolates linearly from AdaptStart at
// the first trial to AdaptEnd at the last.
func NextDelay(rng *mathrand.Rand, p Params, index, total int) (Delay, error) {
	if index < 0 || index >= total {
		return Delay{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, total)
	}

	if !p.Adapting {
		if err := p.Range.Validate(); err != nil {
			return Delay{}, err
		}
		span := float64(p.Range.Hi - p.Range.Lo)
		return newDelay(p.Range.Lo + time.Duration(rng.Float64()*span)), nil
	}

	if total < 2 {
		return Delay{}, ErrSingleTrialAdapting
	}
	switch index {
	case 0:
		return newDelay(p.AdaptStart), nil
	case total - 1:
		return newDelay(p.AdaptEnd), nil
	}
	progress := float64(index) / float64(total-1)
	step := float64(p.AdaptStart-p.AdaptEnd) * progress
	return newDelay(p.AdaptStart - time.Duration(step)), nil
}
