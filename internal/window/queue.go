package window

import (
	"sync"

	"avstress/internal/present"
	"avstress/internal/stimulus"
)

// frame is the content of one screen.
type frame struct {
	fixation bool
	shape    present.Shape
	visual   stimulus.ColorLabel
	text     string
}

// frameQueue holds the back buffer and the frame promoted by the last flip.
// A flip waits until the frame loop has submitted a frame that includes it.
type frameQueue struct {
	mu      sync.Mutex
	pending frame
	front   frame
	waiters []chan struct{}
}

func (q *frameQueue) draw(fn func(f *frame)) {
	q.mu.Lock()
	fn(&q.pending)
	q.mu.Unlock()
}

// flip promotes the back buffer, clears it and returns a channel closed once
// the promoted frame has been submitted.
func (q *frameQueue) flip() <-chan struct{} {
	done := make(chan struct{})
	q.mu.Lock()
	q.front = q.pending
	q.pending = frame{}
	q.waiters = append(q.waiters, done)
	q.mu.Unlock()
	return done
}

// take returns the frame to draw and the flips it satisfies. The caller
// closes the channels after submitting the frame.
func (q *frameQueue) take() (frame, []chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiters := q.waiters
	q.waiters = nil
	return q.front, waiters
}
