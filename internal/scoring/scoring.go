// Package scoring decides whether a response was correct for its trial.
package scoring

import (
	"errors"
	"fmt"

	"avstress/internal/stimulus"
	"avstress/internal/trial"
)

// Verdict is the Correct column of a trial record.
type Verdict int

const (
	// VerdictNA means correctness is not defined for the trial.
	VerdictNA Verdict = iota
	VerdictCorrect
	VerdictIncorrect
)

// String returns the log encoding: "True", "False" or "NA".
func (v Verdict) String() string {
	switch v {
	case VerdictCorrect:
		return "True"
	case VerdictIncorrect:
		return "False"
	default:
		return "NA"
	}
}

// ParseVerdict parses the log encoding.
func ParseVerdict(s string) (Verdict, error) {
	switch s {
	case "True", "true":
		return VerdictCorrect, nil
	case "False", "false":
		return VerdictIncorrect, nil
	case "NA", "":
		return VerdictNA, nil
	default:
		return VerdictNA, fmt.Errorf("scoring: unknown verdict %q", s)
	}
}

// ErrUndeterminedLabel is returned when a scorable trial carries no label in
// either modality.
var ErrUndeterminedLabel = errors.New("scoring: no label in any modality")

// KeyMap assigns a response key to each color.
type KeyMap map[stimulus.ColorLabel]string

// DefaultKeyMap maps red to "r" and blue to "b".
func DefaultKeyMap() KeyMap {
	return KeyMap{stimulus.LabelRed: "r", stimulus.LabelBlue: "b"}
}

// Keys returns the response keys in vocabulary order.
func (m KeyMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, l := range stimulus.Labels {
		if k, ok := m[l]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Scorer applies the per-type correctness rule.
type Scorer struct {
	keys KeyMap
}

// NewScorer creates a scorer using keys.
func NewScorer(keys KeyMap) *Scorer {
	return &Scorer{keys: keys}
}

// Score is pure: for V, A and AVC the expected key comes from the visual
// label if present, else the audio label, and a missing response is simply
// wrong. AVI trials are always NA whatever the response.
func (s *Scorer) Score(t trial.Type, visual, audio stimulus.ColorLabel, key string) (Verdict, error) {
	switch t {
	case trial.TypeAVI:
		return VerdictNA, nil
	case trial.TypeV, trial.TypeA, trial.TypeAVC:
		label := visual
		if !label.Valid() {
			label = audio
		}
		if !label.Valid() {
			return VerdictNA, fmt.Errorf("%w: %s trial", ErrUndeterminedLabel, t)
		}
		expected, ok := s.keys[label]
		if !ok {
			return VerdictNA, fmt.Errorf("scoring: no key for %s", label)
		}
		if key == expected {
			return VerdictCorrect, nil
		}
		return VerdictIncorrect, nil
	default:
		return VerdictNA, &trial.UnknownTypeError{Type: t}
	}
}
