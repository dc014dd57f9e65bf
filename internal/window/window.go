// Package window presents trials in a native window drawn with Gio. Draw
// calls fill a back buffer; Flip asks for a redraw and returns once the
// frame carrying the buffer has been handed to the GPU, so the visual onset
// lands within one display refresh of Flip returning.
//
// Gio needs app.Main on the main goroutine. Run the frame loop (Run) and
// the session on their own goroutines.
package window

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"avstress/internal/present"
	"avstress/internal/response"
	"avstress/internal/stimulus"
)

var (
	// ErrClosed is returned by Flip once the window is gone.
	ErrClosed = errors.New("window: closed")

	// ErrFlipTimeout is returned when no frame was drawn in time, for
	// example while the window is minimized.
	ErrFlipTimeout = errors.New("window: flip timed out")
)

var (
	background = color.NRGBA{A: 0xff}
	foreground = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colors     = map[stimulus.ColorLabel]color.NRGBA{
		stimulus.LabelRed:  {R: 0xff, A: 0xff},
		stimulus.LabelBlue: {B: 0xff, A: 0xff},
	}
)

// Options configures the window.
type Options struct {
	Title      string
	Fullscreen bool
	Width      unit.Dp
	Height     unit.Dp

	// FlipTimeout bounds how long Flip waits for a frame. Zero means one
	// second.
	FlipTimeout time.Duration
}

// Window is a present.Display backed by a Gio window. Key presses seen by
// the window are stamped and pushed into the response input.
type Window struct {
	win         *app.Window
	theme       *material.Theme
	input       *response.ChannelInput
	flipTimeout time.Duration

	queue  frameQueue
	closed chan struct{}
}

// New creates the window. It appears once Run is called.
func New(input *response.ChannelInput, opts Options) *Window {
	if opts.Title == "" {
		opts.Title = "avstress"
	}
	if opts.FlipTimeout <= 0 {
		opts.FlipTimeout = time.Second
	}
	w := new(app.Window)
	w.Option(app.Title(opts.Title))
	if opts.Fullscreen {
		w.Option(app.Fullscreen.Option())
	} else if opts.Width > 0 && opts.Height > 0 {
		w.Option(app.Size(opts.Width, opts.Height))
	}
	return &Window{
		win:         w,
		theme:       material.NewTheme(),
		input:       input,
		flipTimeout: opts.FlipTimeout,
		closed:      make(chan struct{}),
	}
}

// Run processes window events until the window is destroyed.
func (w *Window) Run() error {
	defer close(w.closed)

	var ops op.Ops
	for {
		switch e := w.win.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			w.readKeys(gtx)
			f, waiters := w.queue.take()
			drawFrame(gtx, w.theme, f)
			e.Frame(gtx.Ops)
			for _, done := range waiters {
				close(done)
			}
		}
	}
}

func (w *Window) readKeys(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(keyFilters...)
		if !ok {
			return
		}
		ke, ok := ev.(key.Event)
		if !ok || ke.State != key.Press {
			continue
		}
		if name, ok := KeyName(ke.Name); ok {
			w.input.Press(name)
		}
	}
}

// PresentVisual draws a colored shape.
func (w *Window) PresentVisual(shape present.Shape, c stimulus.ColorLabel) error {
	if _, ok := colors[c]; !ok {
		return fmt.Errorf("window: no color for %s", c)
	}
	w.queue.draw(func(f *frame) {
		f.shape = shape
		f.visual = c
	})
	return nil
}

// PresentFixation draws the fixation cross.
func (w *Window) PresentFixation() error {
	w.queue.draw(func(f *frame) { f.fixation = true })
	return nil
}

// PresentText draws a centered message.
func (w *Window) PresentText(msg string) error {
	w.queue.draw(func(f *frame) { f.text = msg })
	return nil
}

// Flip shows the back buffer and returns after the frame is submitted.
func (w *Window) Flip() error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	done := w.queue.flip()
	w.win.Invalidate()

	timer := time.NewTimer(w.flipTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-w.closed:
		return ErrClosed
	case <-timer.C:
		return ErrFlipTimeout
	}
}

// Close destroys the window and waits for Run to return.
func (w *Window) Close() error {
	w.win.Perform(system.ActionClose)
	select {
	case <-w.closed:
	case <-time.After(2 * time.Second):
		return errors.New("window: close timed out")
	}
	return nil
}

// Done is closed when Run has returned.
func (w *Window) Done() <-chan struct{} {
	return w.closed
}

var keyFilters = func() []event.Filter {
	names := []key.Name{key.NameSpace, key.NameReturn, key.NameEnter, key.NameEscape}
	for c := 'A'; c <= 'Z'; c++ {
		names = append(names, key.Name(string(c)))
	}
	for c := '0'; c <= '9'; c++ {
		names = append(names, key.Name(string(c)))
	}
	filters := make([]event.Filter, len(names))
	for i, n := range names {
		filters[i] = key.Filter{Name: n}
	}
	return filters
}()

// KeyName maps a Gio key to the key name used in configs and logs.
func KeyName(name key.Name) (string, bool) {
	switch name {
	case key.NameSpace:
		return "space", true
	case key.NameReturn, key.NameEnter:
		return "return", true
	case key.NameEscape:
		return "escape", true
	}
	if s := string(name); len(s) == 1 && s[0] > ' ' && s[0] <= '~' {
		return strings.ToLower(s), true
	}
	return "", false
}

func drawFrame(gtx layout.Context, th *material.Theme, f frame) {
	paint.Fill(gtx.Ops, background)
	size := gtx.Constraints.Max
	center := image.Pt(size.X/2, size.Y/2)

	switch {
	case f.text != "":
		layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			gtx.Constraints.Max.X = size.X * 3 / 4
			l := material.H5(th, f.text)
			l.Color = foreground
			l.Alignment = text.Middle
			return l.Layout(gtx)
		})
	case f.visual != stimulus.LabelNone:
		r := gtx.Dp(100)
		bounds := image.Rect(center.X-r, center.Y-r, center.X+r, center.Y+r)
		var shape clip.Op
		if f.shape == present.ShapeSquare {
			shape = clip.Rect(bounds).Op()
		} else {
			shape = clip.Ellipse(bounds).Op(gtx.Ops)
		}
		paint.FillShape(gtx.Ops, colors[f.visual], shape)
	case f.fixation:
		arm, half := gtx.Dp(20), gtx.Dp(2)
		paint.FillShape(gtx.Ops, foreground, clip.Rect(image.Rect(center.X-arm, center.Y-half, center.X+arm, center.Y+half)).Op())
		paint.FillShape(gtx.Ops, foreground, clip.Rect(image.Rect(center.X-half, center.Y-arm, center.X+half, center.Y+arm)).Op())
	}
}
