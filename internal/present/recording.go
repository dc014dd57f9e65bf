package present

import (
	"sync"

	"avstress/internal/stimulus"
)

// Frame is one flipped frame as seen by a RecordingDisplay.
type Frame struct {
	Fixation bool
	Visual   stimulus.ColorLabel
	Shape    Shape
	Text     string
}

// RecordingDisplay is a Display that keeps every flipped frame. OnFlip runs
// after each flip with the frame just shown.
type RecordingDisplay struct {
	OnFlip func(Frame)

	mu      sync.Mutex
	pending Frame
	frames  []Frame
}

// PresentVisual draws a colored shape.
func (d *RecordingDisplay) PresentVisual(shape Shape, color stimulus.ColorLabel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.Visual = color
	d.pending.Shape = shape
	return nil
}

// PresentFixation draws the fixation cross.
func (d *RecordingDisplay) PresentFixation() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.Fixation = true
	return nil
}

// PresentText draws a message.
func (d *RecordingDisplay) PresentText(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.Text = text
	return nil
}

// Flip shows the pending frame and starts a new one.
func (d *RecordingDisplay) Flip() error {
	d.mu.Lock()
	f := d.pending
	d.frames = append(d.frames, f)
	d.pending = Frame{}
	hook := d.OnFlip
	d.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

// Frames returns a copy of all flipped frames.
func (d *RecordingDisplay) Frames() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Frame(nil), d.frames...)
}
