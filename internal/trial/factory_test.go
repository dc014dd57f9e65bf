package trial

import (
	mathrand "math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avstress/internal/stimulus"
)

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	catalog, _ := stimulus.NewSimulatedCatalog()
	return NewFactory(catalog)
}

func newRNG() *mathrand.Rand {
	return mathrand.New(mathrand.NewPCG(1, 2))
}

func countBy(specs []Spec) map[Type]int {
	out := make(map[Type]int)
	for _, s := range specs {
		out[s.Type]++
	}
	return out
}

func TestGenerateCounts(t *testing.T) {
	f := newTestFactory(t)

	tests := []struct {
		name  string
		types []Type
		total int
	}{
		{"original block", AllTypes, 120},
		{"remainder dropped", AllTypes, 10},
		{"practice", []Type{TypeA, TypeV}, 6},
		{"single type", []Type{TypeAVI}, 7},
		{"exactly one each", AllTypes, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs, err := f.Generate(tt.types, tt.total, newRNG())
			require.NoError(t, err)

			perType := tt.total / len(tt.types)
			assert.Len(t, specs, perType*len(tt.types))
			for typ, n := range countBy(specs) {
				assert.Equal(t, perType, n, "type %s", typ)
			}
		})
	}
}

func TestGenerateEmpty(t *testing.T) {
	f := newTestFactory(t)

	specs, err := f.Generate(nil, 10, newRNG())
	require.NoError(t, err)
	assert.Empty(t, specs)

	specs, err = f.Generate(AllTypes, 3, newRNG())
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestGenerateModalityInvariants(t *testing.T) {
	f := newTestFactory(t)
	specs, err := f.Generate(AllTypes, 120, newRNG())
	require.NoError(t, err)

	for _, s := range specs {
		audioLabel := stimulus.LabelNone
		if s.Audio != nil {
			var ok bool
			audioLabel, ok = stimulus.LabelFromSource(s.Audio.SourceLabel())
			require.True(t, ok)
		}

		switch s.Type {
		case TypeV:
			assert.Nil(t, s.Audio)
			assert.True(t, s.Visual.Valid())
		case TypeA:
			assert.Equal(t, stimulus.LabelNone, s.Visual)
			assert.True(t, audioLabel.Valid())
		case TypeAVC:
			assert.Equal(t, s.Visual, audioLabel)
		case TypeAVI:
			assert.Equal(t, s.Visual.Complement(), audioLabel)
		}
		assert.Equal(t, s.AudioLabel, audioLabel)
	}
}

func TestGeneratePracticeScenario(t *testing.T) {
	f := newTestFactory(t)
	specs, err := f.Generate([]Type{TypeV, TypeA}, 6, newRNG())
	require.NoError(t, err)
	require.Len(t, specs, 6)

	counts := countBy(specs)
	assert.Equal(t, 3, counts[TypeV])
	assert.Equal(t, 3, counts[TypeA])

	// Three per type: floor half (1) red, the rest blue.
	labels := map[Type]map[stimulus.ColorLabel]int{TypeV: {}, TypeA: {}}
	for _, s := range specs {
		if s.Type == TypeV {
			labels[TypeV][s.Visual]++
		} else {
			labels[TypeA][s.AudioLabel]++
		}
	}
	for _, typ := range []Type{TypeV, TypeA} {
		assert.Equal(t, 1, labels[typ][stimulus.LabelRed])
		assert.Equal(t, 2, labels[typ][stimulus.LabelBlue])
	}
}

func TestGenerateBalancedEvenCounts(t *testing.T) {
	f := newTestFactory(t)
	specs, err := f.Generate(AllTypes, 120, newRNG())
	require.NoError(t, err)

	red := make(map[Type]int)
	for _, s := range specs {
		label := s.Visual
		if s.Type == TypeA {
			label = s.AudioLabel
		}
		if label == stimulus.LabelRed {
			red[s.Type]++
		}
	}
	for _, typ := range AllTypes {
		assert.Equal(t, 15, red[typ], "type %s", typ)
	}
}

func TestGenerateShufflesDeterministically(t *testing.T) {
	f := newTestFactory(t)

	a, err := f.Generate(AllTypes, 40, newRNG())
	require.NoError(t, err)
	b, err := f.Generate(AllTypes, 40, newRNG())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// The unshuffled order would be ten V trials first.
	allV := true
	for _, s := range a[:10] {
		if s.Type != TypeV {
			allV = false
		}
	}
	assert.False(t, allV)
}

func TestGenerateUnknownType(t *testing.T) {
	f := newTestFactory(t)
	_, err := f.Generate([]Type{Type(99)}, 2, newRNG())
	var ute *UnknownTypeError
	assert.ErrorAs(t, err, &ute)
}

func TestParseTypes(t *testing.T) {
	types, err := ParseTypes([]string{"V", "a", "AVC", "AVI"})
	require.NoError(t, err)
	assert.Equal(t, AllTypes, types)

	_, err = ParseTypes([]string{"V", "V"})
	assert.Error(t, err)

	_, err = ParseTypes([]string{"X"})
	assert.Error(t, err)
}
