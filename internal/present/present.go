// Package present arms the auditory and visual outputs of a trial so both
// become observable on the same frame, and records the onset that reaction
// times are measured from.
//
// Arm issues play and flip back to back with no blocking work between them.
// Play only unpauses a stream decoded at startup, so its cost is a lock and
// a flag. What remains is the platform: the sound is audible after the
// device buffer (stimuli.buffer_ms) plus the OS mixer period, and the visual
// after the next display refresh of the window surface. The terminal surface
// has no refresh signal at all. Skew is therefore bounded but not zero.
package present

import (
	"errors"
	"fmt"
	"time"

	"avstress/internal/clock"
	"avstress/internal/stimulus"
	"avstress/internal/trial"
)

// Shape is the geometric form of the visual stimulus.
type Shape int

const (
	ShapeCircle Shape = iota
	ShapeSquare
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "circle"
	case ShapeSquare:
		return "square"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape parses a shape name.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "circle", "":
		return ShapeCircle, nil
	case "square":
		return ShapeSquare, nil
	default:
		return 0, fmt.Errorf("present: unknown shape %q", s)
	}
}

// Display is the presentation surface. Draw calls go to a back buffer;
// Flip makes the buffer visible and returns once the frame is shown.
type Display interface {
	PresentVisual(shape Shape, color stimulus.ColorLabel) error
	PresentFixation() error
	PresentText(text string) error
	Flip() error
}

// ErrPresentation wraps failures of the display or audio surface.
var ErrPresentation = errors.New("present: presentation failed")

// Onset describes one armed trial.
type Onset struct {
	// Clock is zeroed at the instant captured before play was issued.
	Clock *clock.Sync

	// FlipLag is the time from the zero point until Flip returned.
	FlipLag time.Duration
}

// Synchronizer arms trials against a display and audio handles.
type Synchronizer struct {
	display Display
	shape   Shape
	active  stimulus.AudioHandle
}

// NewSynchronizer creates a synchronizer drawing visuals as shape.
func NewSynchronizer(display Display, shape Shape) *Synchronizer {
	return &Synchronizer{display: display, shape: shape}
}

// Arm presents spec. Any sound still playing from an earlier trial is
// stopped first. The visual is drawn to the back buffer, the zero point is
// captured, then play and flip are issued in immediate succession.
func (s *Synchronizer) Arm(spec trial.Spec) (Onset, error) {
	if err := s.stopActive(); err != nil {
		return Onset{}, err
	}
	if spec.Audio != nil {
		if err := spec.Audio.Stop(); err != nil {
			return Onset{}, fmt.Errorf("%w: stop %s: %v", ErrPresentation, spec.Audio.SourceLabel(), err)
		}
	}

	if spec.Visual != stimulus.LabelNone {
		if err := s.display.PresentVisual(s.shape, spec.Visual); err != nil {
			return Onset{}, fmt.Errorf("%w: draw %s: %v", ErrPresentation, spec.Visual, err)
		}
	}

	sync := clock.NewSync()
	var playErr error
	if spec.Audio != nil {
		playErr = spec.Audio.Play()
		if playErr == nil {
			s.active = spec.Audio
		}
	}
	// Flip even without a visual so the fixation cross is cleared.
	flipErr := s.display.Flip()
	lag := sync.Elapsed()

	if playErr != nil {
		return Onset{}, fmt.Errorf("%w: play %s: %v", ErrPresentation, spec.Audio.SourceLabel(), playErr)
	}
	if flipErr != nil {
		return Onset{}, fmt.Errorf("%w: flip: %v", ErrPresentation, flipErr)
	}
	return Onset{Clock: sync, FlipLag: lag}, nil
}

// Fixation draws and shows the fixation marker.
func (s *Synchronizer) Fixation() error {
	if err := s.display.PresentFixation(); err != nil {
		return fmt.Errorf("%w: fixation: %v", ErrPresentation, err)
	}
	if err := s.display.Flip(); err != nil {
		return fmt.Errorf("%w: flip: %v", ErrPresentation, err)
	}
	return nil
}

// Blank shows an empty frame.
func (s *Synchronizer) Blank() error {
	if err := s.display.Flip(); err != nil {
		return fmt.Errorf("%w: flip: %v", ErrPresentation, err)
	}
	return nil
}

// Text shows a full-screen message.
func (s *Synchronizer) Text(text string) error {
	if err := s.display.PresentText(text); err != nil {
		return fmt.Errorf("%w: text: %v", ErrPresentation, err)
	}
	if err := s.display.Flip(); err != nil {
		return fmt.Errorf("%w: flip: %v", ErrPresentation, err)
	}
	return nil
}

// Stop silences any sound started by the last Arm.
func (s *Synchronizer) Stop() error {
	return s.stopActive()
}

func (s *Synchronizer) stopActive() error {
	if s.active == nil {
		return nil
	}
	h := s.active
	s.active = nil
	if err := h.Stop(); err != nil {
		return fmt.Errorf("%w: stop %s: %v", ErrPresentation, h.SourceLabel(), err)
	}
	return nil
}
