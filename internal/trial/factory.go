package trial

import (
	mathrand "math/rand/v2"

	"avstress/internal/stimulus"
)

// Factory generates trial sequences from a stimulus catalog.
type Factory struct {
	catalog *stimulus.Catalog
}

// NewFactory creates a factory bound to catalog.
func NewFactory(catalog *stimulus.Catalog) *Factory {
	return &Factory{catalog: catalog}
}

// PerType returns how many trials each type receives. Remainder trials are
// dropped: 10 trials over 4 types yields 2 per type, 8 in total.
func PerType(types []Type, total int) int {
	if len(types) == 0 || total < len(types) {
		return 0
	}
	return total / len(types)
}

// labelQueue returns n labels, the floor half first-label and the rest
// second-label.
func labelQueue(n int) []stimulus.ColorLabel {
	first := n / 2
	q := make([]stimulus.ColorLabel, 0, n)
	for i := 0; i < n; i++ {
		if i < first {
			q = append(q, stimulus.Labels[0])
		} else {
			q = append(q, stimulus.Labels[1])
		}
	}
	return q
}

// Generate builds PerType(types, total) trials of each type with balanced
// labels and shuffles the whole sequence once with rng. It returns an empty
// sequence when no type would receive a trial.
func (f *Factory) Generate(types []Type, total int, rng *mathrand.Rand) ([]Spec, error) {
	perType := PerType(types, total)
	if perType == 0 {
		return nil, nil
	}

	specs := make([]Spec, 0, perType*len(types))
	for _, t := range types {
		for _, label := range labelQueue(perType) {
			spec, err := f.build(t, label)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}

	rng.Shuffle(len(specs), func(i, j int) {
		specs[i], specs[j] = specs[j], specs[i]
	})
	return specs, nil
}

func (f *Factory) build(t Type, label stimulus.ColorLabel) (Spec, error) {
	spec := Spec{Type: t}
	switch t {
	case TypeV:
		spec.Visual = label
	case TypeA:
		spec.AudioLabel = label
	case TypeAVC:
		spec.Visual = label
		spec.AudioLabel = label
	case TypeAVI:
		spec.Visual = label
		spec.AudioLabel = label.Complement()
	default:
		return Spec{}, &UnknownTypeError{Type: t}
	}

	if spec.AudioLabel != stimulus.LabelNone {
		h, err := f.catalog.Audio(spec.AudioLabel)
		if err != nil {
			return Spec{}, err
		}
		spec.Audio = h
	}
	return spec, nil
}

// UnknownTypeError is returned for a Type outside the enumeration.
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return "trial: unknown type " + e.Type.String()
}
