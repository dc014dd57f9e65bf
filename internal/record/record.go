// Package record defines the per-trial log row and the append-only sinks it
// is written to.
package record

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"avstress/internal/scoring"
	"avstress/internal/stimulus"
	"avstress/internal/trial"
)

// NA is written for fields that do not apply to a trial.
const NA = "NA"

// Header is the fixed column order of the trial log.
var Header = []string{"Participant", "Block", "Trial", "Type", "Visual", "Audio", "Response", "RT", "Correct", "ITI"}

// Result is one completed trial.
type Result struct {
	Participant string
	Block       int
	// Trial is 1-based within the block.
	Trial int
	Type  trial.Type

	Visual stimulus.ColorLabel
	// Audio is the base name of the played file, "" without audio.
	Audio string

	// Response is the pressed key or response.NoResponseKey.
	Response  string
	Responded bool
	RT        time.Duration

	Correct scoring.Verdict

	// ITI is the rounded interval in seconds that followed the trial.
	ITI float64
}

// Row encodes r in Header order.
func (r Result) Row() []string {
	rt := NA
	if r.Responded {
		rt = strconv.FormatFloat(r.RT.Seconds(), 'f', -1, 64)
	}
	return []string{
		r.Participant,
		strconv.Itoa(r.Block),
		strconv.Itoa(r.Trial),
		r.Type.String(),
		orNA(r.Visual.String()),
		orNA(r.Audio),
		orNA(r.Response),
		rt,
		r.Correct.String(),
		strconv.FormatFloat(r.ITI, 'f', -1, 64),
	}
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}

func fromNA(s string) string {
	if s == NA {
		return ""
	}
	return s
}

// ErrMalformedRow is returned by ParseRow for rows that do not match Header.
var ErrMalformedRow = errors.New("record: malformed row")

// ParseRow decodes a row produced by Row.
func ParseRow(row []string) (Result, error) {
	if len(row) != len(Header) {
		return Result{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRow, len(row), len(Header))
	}

	var r Result
	var err error
	r.Participant = row[0]
	if r.Block, err = strconv.Atoi(row[1]); err != nil {
		return Result{}, fmt.Errorf("%w: block: %v", ErrMalformedRow, err)
	}
	if r.Trial, err = strconv.Atoi(row[2]); err != nil {
		return Result{}, fmt.Errorf("%w: trial: %v", ErrMalformedRow, err)
	}
	if r.Type, err = trial.ParseType(row[3]); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	if r.Visual, err = stimulus.ParseColorLabel(row[4]); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	r.Audio = fromNA(row[5])
	r.Response = fromNA(row[6])
	if row[7] != NA {
		sec, err := strconv.ParseFloat(row[7], 64)
		if err != nil {
			return Result{}, fmt.Errorf("%w: rt: %v", ErrMalformedRow, err)
		}
		r.RT = time.Duration(math.Round(sec * float64(time.Second)))
		r.Responded = true
	}
	if r.Correct, err = scoring.ParseVerdict(row[8]); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	if r.ITI, err = strconv.ParseFloat(row[9], 64); err != nil {
		return Result{}, fmt.Errorf("%w: iti: %v", ErrMalformedRow, err)
	}
	return r, nil
}

// Sink is an append-only destination for trial results.
type Sink interface {
	// Exists reports whether the destination already held data when opened
	// or a header has since been written. It is decided once per open.
	Exists() bool
	WriteHeader() error
	// Append writes one row atomically: either the whole row lands or none.
	Append(r Result) error
	Close() error
}

// SinkError is a failed write of one trial row. It stops the block.
type SinkError struct {
	Block int
	Trial int
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("record: write block %d trial %d: %v", e.Block, e.Trial, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Prepare writes the header when the sink is new.
func Prepare(s Sink) error {
	if s.Exists() {
		return nil
	}
	if err := s.WriteHeader(); err != nil {
		return fmt.Errorf("record: write header: %w", err)
	}
	return nil
}
