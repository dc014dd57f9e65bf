// Package stimulus defines the closed color vocabulary of the experiment and
// the catalog that maps each color to its pre-resolved spoken-word audio.
package stimulus

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ColorLabel is one entry of the color vocabulary.
type ColorLabel int

const (
	// LabelNone marks an absent modality (no visual, or no audio).
	LabelNone ColorLabel = iota
	LabelRed
	LabelBlue
)

// Labels is the vocabulary in its fixed enumeration order.
var Labels = []ColorLabel{LabelRed, LabelBlue}

// String returns the lower-case color name, or "NA" for LabelNone.
func (c ColorLabel) String() string {
	switch c {
	case LabelRed:
		return "red"
	case LabelBlue:
		return "blue"
	case LabelNone:
		return "NA"
	default:
		return fmt.Sprintf("ColorLabel(%d)", int(c))
	}
}

// Valid reports whether c names a color.
func (c ColorLabel) Valid() bool {
	return c == LabelRed || c == LabelBlue
}

// Complement returns the other label of the two-color vocabulary.
func (c ColorLabel) Complement() ColorLabel {
	switch c {
	case LabelRed:
		return LabelBlue
	case LabelBlue:
		return LabelRed
	default:
		return LabelNone
	}
}

// ParseColorLabel parses a color name. "NA" and "" parse to LabelNone.
func ParseColorLabel(s string) (ColorLabel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return LabelRed, nil
	case "blue":
		return LabelBlue, nil
	case "", "na":
		return LabelNone, nil
	default:
		return LabelNone, fmt.Errorf("stimulus: unknown color %q", s)
	}
}

// LabelFromSource recovers the color encoded in an audio file name, e.g.
// "sounds/blue.mp3" -> LabelBlue.
func LabelFromSource(source string) (ColorLabel, bool) {
	base := strings.ToLower(filepath.Base(source))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, l := range Labels {
		if stem == l.String() {
			return l, true
		}
	}
	for _, l := range Labels {
		if strings.Contains(stem, l.String()) {
			return l, true
		}
	}
	return LabelNone, false
}

// AudioHandle is a preloaded, playable sound owned by the audio surface.
type AudioHandle interface {
	Play() error
	Stop() error
	// SourceLabel returns the file name the sound was loaded from.
	SourceLabel() string
}

// ErrResourceUnavailable is returned when a stimulus cannot be resolved.
var ErrResourceUnavailable = errors.New("stimulus: resource unavailable")
