// Package terminal renders trials on an ANSI terminal and reads raw key
// presses from it. It is the simplest real surface: no window system, one
// character cell per pixel.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"avstress/internal/present"
	"avstress/internal/stimulus"
)

const (
	clearScreen = "\x1b[2J\x1b[H"
	hideCursor  = "\x1b[?25l"
	showCursor  = "\x1b[?25h"
	reset       = "\x1b[0m"
)

var colorCodes = map[stimulus.ColorLabel]string{
	stimulus.LabelRed:  "\x1b[31;1m",
	stimulus.LabelBlue: "\x1b[34;1m",
}

var shapes = map[present.Shape][]string{
	present.ShapeCircle: {
		"   █████   ",
		" █████████ ",
		"███████████",
		"███████████",
		" █████████ ",
		"   █████   ",
	},
	present.ShapeSquare: {
		"███████████",
		"███████████",
		"███████████",
		"███████████",
		"███████████",
		"███████████",
	},
}

type frame struct {
	fixation bool
	shape    present.Shape
	visual   stimulus.ColorLabel
	text     string
}

// Display is a present.Display drawing to an ANSI terminal. Draw calls fill
// a back buffer; Flip writes it in one call.
type Display struct {
	w      io.Writer
	width  int
	height int

	mu      sync.Mutex
	pending frame
}

// NewDisplay creates a display of the given size in character cells.
// Non-positive sizes fall back to 80x24.
func NewDisplay(w io.Writer, width, height int) *Display {
	if width <= 0 || height <= 0 {
		width, height = 80, 24
	}
	io.WriteString(w, hideCursor+clearScreen)
	return &Display{w: w, width: width, height: height}
}

// PresentVisual draws a colored shape.
func (d *Display) PresentVisual(shape present.Shape, color stimulus.ColorLabel) error {
	if _, ok := colorCodes[color]; !ok {
		return fmt.Errorf("terminal: no color for %s", color)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.shape = shape
	d.pending.visual = color
	return nil
}

// PresentFixation draws the fixation cross.
func (d *Display) PresentFixation() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.fixation = true
	return nil
}

// PresentText draws a centered message.
func (d *Display) PresentText(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.text = text
	return nil
}

// Flip writes the back buffer to the terminal and clears it.
func (d *Display) Flip() error {
	d.mu.Lock()
	f := d.pending
	d.pending = frame{}
	d.mu.Unlock()

	_, err := io.WriteString(d.w, d.render(f))
	return err
}

// Close restores the cursor.
func (d *Display) Close() error {
	_, err := io.WriteString(d.w, reset+clearScreen+showCursor)
	return err
}

func (d *Display) render(f frame) string {
	var lines []string
	color := ""
	switch {
	case f.text != "":
		for _, l := range strings.Split(f.text, "\n") {
			lines = append(lines, strings.TrimSpace(l))
		}
	case f.visual != stimulus.LabelNone:
		lines = shapes[f.shape]
		color = colorCodes[f.visual]
	case f.fixation:
		lines = []string{"+"}
	}

	var b strings.Builder
	b.WriteString(clearScreen)
	top := (d.height - len(lines)) / 2
	for i, l := range lines {
		col := (d.width-runeLen(l))/2 + 1
		if col < 1 {
			col = 1
		}
		fmt.Fprintf(&b, "\x1b[%d;%dH%s%s", top+i+1, col, color, l)
		if color != "" {
			b.WriteString(reset)
		}
	}
	return b.String()
}

func runeLen(s string) int {
	return len([]rune(s))
}
