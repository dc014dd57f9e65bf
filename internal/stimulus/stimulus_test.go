package stimulus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorLabelComplement(t *testing.T) {
	assert.Equal(t, LabelBlue, LabelRed.Complement())
	assert.Equal(t, LabelRed, LabelBlue.Complement())
	assert.Equal(t, LabelNone, LabelNone.Complement())
}

func TestParseColorLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected ColorLabel
		hasError bool
	}{
		{"red", LabelRed, false},
		{"BLUE", LabelBlue, false},
		{"NA", LabelNone, false},
		{"", LabelNone, false},
		{"green", LabelNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColorLabel(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLabelFromSource(t *testing.T) {
	l, ok := LabelFromSource("/data/sounds/blue.mp3")
	require.True(t, ok)
	assert.Equal(t, LabelBlue, l)

	l, ok = LabelFromSource("spoken_red_v2.wav")
	require.True(t, ok)
	assert.Equal(t, LabelRed, l)

	_, ok = LabelFromSource("beep.wav")
	assert.False(t, ok)
}

func TestNewCatalogMissingLabel(t *testing.T) {
	_, err := NewCatalog(map[ColorLabel]AudioHandle{
		LabelRed: NewSimulatedAudio("red.mp3"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceUnavailable))
}

func TestNewCatalogMismatchedSource(t *testing.T) {
	_, err := NewCatalog(map[ColorLabel]AudioHandle{
		LabelRed:  NewSimulatedAudio("blue.mp3"),
		LabelBlue: NewSimulatedAudio("blue.mp3"),
	})
	assert.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"red.mp3", "blue.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}

	c, err := LoadCatalog(dir, ".mp3", SimulatedOpener)
	require.NoError(t, err)

	h, err := c.Audio(LabelBlue)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "blue.mp3"), h.SourceLabel())
}

func TestLoadCatalogMissingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "red.mp3"), []byte("x"), 0600))

	_, err := LoadCatalog(dir, ".mp3", SimulatedOpener)
	assert.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestCatalogStopAll(t *testing.T) {
	c, raw := NewSimulatedCatalog()
	require.NoError(t, raw[LabelRed].Play())
	require.NoError(t, c.StopAll())
	assert.False(t, raw[LabelRed].Playing())
	assert.Equal(t, 1, raw[LabelBlue].Stops())
}
