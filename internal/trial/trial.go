// Package trial defines trial types and builds balanced, shuffled trial
// sequences for a block.
package trial

import (
	"fmt"
	"strings"

	"avstress/internal/stimulus"
)

// Type is the modality condition of a trial.
type Type int

const (
	// TypeV is visual only.
	TypeV Type = iota + 1
	// TypeA is audio only.
	TypeA
	// TypeAVC is audio and visual with the same color.
	TypeAVC
	// TypeAVI is audio and visual with conflicting colors.
	TypeAVI
)

// AllTypes lists every trial type in canonical order.
var AllTypes = []Type{TypeV, TypeA, TypeAVC, TypeAVI}

// String returns the log code of the type.
func (t Type) String() string {
	switch t {
	case TypeV:
		return "V"
	case TypeA:
		return "A"
	case TypeAVC:
		return "AVC"
	case TypeAVI:
		return "AVI"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType parses a log code.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "V":
		return TypeV, nil
	case "A":
		return TypeA, nil
	case "AVC":
		return TypeAVC, nil
	case "AVI":
		return TypeAVI, nil
	default:
		return 0, fmt.Errorf("trial: unknown type %q", s)
	}
}

// ParseTypes parses a list of log codes, rejecting duplicates.
func ParseTypes(codes []string) ([]Type, error) {
	seen := make(map[Type]bool, len(codes))
	out := make([]Type, 0, len(codes))
	for _, c := range codes {
		t, err := ParseType(c)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			return nil, fmt.Errorf("trial: duplicate type %s", t)
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// HasVisual reports whether trials of this type show a visual stimulus.
func (t Type) HasVisual() bool {
	return t != TypeA
}

// HasAudio reports whether trials of this type play a sound.
func (t Type) HasAudio() bool {
	return t != TypeV
}

// Spec is one generated trial. Specs are immutable once generated.
type Spec struct {
	Type Type

	// Visual is LabelNone for audio-only trials.
	Visual stimulus.ColorLabel

	// AudioLabel is the label Audio was resolved for, LabelNone without audio.
	AudioLabel stimulus.ColorLabel
	Audio      stimulus.AudioHandle
}

// AudioSource returns the audio file name, or "" without audio.
func (s Spec) AudioSource() string {
	if s.Audio == nil {
		return ""
	}
	return s.Audio.SourceLabel()
}

// String renders the spec for debug logs.
func (s Spec) String() string {
	return fmt.Sprintf("%s visual=%s audio=%s", s.Type, s.Visual, s.AudioLabel)
}
