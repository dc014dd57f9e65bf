package window

import (
	"image"
	"testing"
	"time"

	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avstress/internal/present"
	"avstress/internal/stimulus"
)

func TestFrameQueueFlip(t *testing.T) {
	var q frameQueue
	q.draw(func(f *frame) { f.fixation = true })
	done := q.flip()

	select {
	case <-done:
		t.Fatal("flip released before a frame was drawn")
	default:
	}

	f, waiters := q.take()
	assert.True(t, f.fixation)
	require.Len(t, waiters, 1)
	for _, c := range waiters {
		close(c)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flip not released")
	}

	// The back buffer starts empty after a flip; the front frame stays up
	// for redraws until the next flip.
	_ = q.flip()
	f, _ = q.take()
	assert.Equal(t, frame{}, f)
}

func TestFrameQueueRedrawKeepsFront(t *testing.T) {
	var q frameQueue
	q.draw(func(f *frame) {
		f.shape = present.ShapeSquare
		f.visual = stimulus.LabelRed
	})
	q.flip()
	q.take()

	f, waiters := q.take()
	assert.Equal(t, stimulus.LabelRed, f.visual)
	assert.Empty(t, waiters)
}

func TestKeyName(t *testing.T) {
	tests := []struct {
		in   key.Name
		want string
		ok   bool
	}{
		{"R", "r", true},
		{"7", "7", true},
		{key.NameSpace, "space", true},
		{key.NameReturn, "return", true},
		{key.NameEnter, "return", true},
		{key.NameEscape, "escape", true},
		{key.NameF1, "", false},
	}
	for _, tt := range tests {
		got, ok := KeyName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDrawFrame(t *testing.T) {
	frames := []frame{
		{},
		{fixation: true},
		{shape: present.ShapeCircle, visual: stimulus.LabelBlue},
		{shape: present.ShapeSquare, visual: stimulus.LabelRed},
	}
	for _, f := range frames {
		ops := new(op.Ops)
		gtx := layout.Context{
			Ops:         ops,
			Constraints: layout.Exact(image.Pt(800, 600)),
			Metric:      unit.Metric{PxPerDp: 1, PxPerSp: 1},
		}
		assert.NotPanics(t, func() { drawFrame(gtx, nil, f) })
	}
}

func TestPresentVisualRejectsUnknownColor(t *testing.T) {
	w := &Window{closed: make(chan struct{})}
	assert.Error(t, w.PresentVisual(present.ShapeCircle, stimulus.LabelNone))
	require.NoError(t, w.PresentVisual(present.ShapeCircle, stimulus.LabelRed))
	assert.Equal(t, stimulus.LabelRed, w.queue.pending.visual)
}
