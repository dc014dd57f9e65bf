package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avstress/internal/stimulus"
)

// writeWAV writes a 16-bit PCM file holding samples.
func writeWAV(t *testing.T, path string, rate, chans int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, chans, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: chans, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestDecodeWAVMonoToStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.wav")
	writeWAV(t, path, 8000, 1, []int{0, 1000, -1000, 32767})

	pcm, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, pcm.SampleRate)
	assert.Equal(t, 4, pcm.Frames())
	assert.Equal(t, 500*time.Microsecond, pcm.Duration())

	// second frame: 1000 on both channels, little endian
	assert.Equal(t, []byte{0xe8, 0x03, 0xe8, 0x03}, pcm.Data[4:8])
}

func TestDecodeWAVStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blue.wav")
	writeWAV(t, path, 44100, 2, []int{1, -1, 2, -2})

	pcm, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, pcm.Frames())
	assert.Equal(t, []byte{0x01, 0x00, 0xff, 0xff}, pcm.Data[:4])
}

func TestDecodeRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"red.wav", "red.mp3"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("not audio"), 0600))
		_, err := DecodeFile(path)
		assert.Error(t, err, name)
	}

	path := filepath.Join(dir, "red.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS"), 0600))
	_, err := DecodeFile(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSampleConverters(t *testing.T) {
	assert.Equal(t, int16(0), sampleConverters[8](128))
	assert.Equal(t, int16(-32768), sampleConverters[8](0))
	assert.Equal(t, int16(-2), sampleConverters[16](-2))
	assert.Equal(t, int16(0x1234), sampleConverters[24](0x123456))
	assert.Equal(t, int16(-1), sampleConverters[32](-1))
}

func TestCheckOpener(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "red.wav"), 22050, 1, []int{1, 2, 3})
	writeWAV(t, filepath.Join(dir, "blue.wav"), 22050, 1, []int{1, 2, 3})

	catalog, err := stimulus.LoadCatalog(dir, ".wav", CheckOpener(22050))
	require.NoError(t, err)
	h, err := catalog.Audio(stimulus.LabelBlue)
	require.NoError(t, err)
	assert.Equal(t, "blue.wav", h.SourceLabel())

	_, err = stimulus.LoadCatalog(dir, ".wav", CheckOpener(44100))
	assert.ErrorIs(t, err, stimulus.ErrResourceUnavailable)
	assert.True(t, strings.Contains(err.Error(), ErrSampleRate.Error()), err.Error())
}

// fakeVoice records what a clip does to its stream.
type fakeVoice struct {
	playing bool
	pos     int64
	calls   []string
	seekErr error
}

func (v *fakeVoice) Play()           { v.playing = true; v.calls = append(v.calls, "play") }
func (v *fakeVoice) Pause()          { v.playing = false; v.calls = append(v.calls, "pause") }
func (v *fakeVoice) IsPlaying() bool { return v.playing }
func (v *fakeVoice) Err() error      { return nil }

func (v *fakeVoice) Seek(offset int64, whence int) (int64, error) {
	if v.seekErr != nil {
		return 0, v.seekErr
	}
	if whence != io.SeekStart {
		return 0, errors.New("unexpected whence")
	}
	v.pos = offset
	v.calls = append(v.calls, "seek")
	return offset, nil
}

func TestClipPlayRewinds(t *testing.T) {
	v := &fakeVoice{pos: 4096}
	c := newClip("red.mp3", v, 400*time.Millisecond)

	require.NoError(t, c.Play())
	assert.True(t, c.Playing())
	assert.Equal(t, int64(0), v.pos)
	assert.Equal(t, []string{"pause", "seek", "play"}, v.calls)

	v.pos = 800
	require.NoError(t, c.Stop())
	assert.False(t, c.Playing())
	assert.Equal(t, int64(0), v.pos)

	assert.Equal(t, "red.mp3", c.SourceLabel())
	assert.Equal(t, 400*time.Millisecond, c.Duration())
}

func TestClipSeekFailure(t *testing.T) {
	v := &fakeVoice{seekErr: errors.New("closed")}
	c := newClip("blue.mp3", v, 0)
	assert.Error(t, c.Play())
	assert.False(t, v.playing)
}
