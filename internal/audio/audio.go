// Package audio decodes stimulus sounds once, when the catalog is loaded,
// and plays the decoded PCM through a single output device. Starting a
// sound is a rewind plus an unpause on a stream that already exists, so no
// file access or decoding happens at trial onset.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"avstress/internal/stimulus"
)

const (
	// Channels is the output channel count. Mono sources are duplicated.
	Channels = 2

	// frameSize is the byte size of one stereo frame of signed 16-bit samples.
	frameSize = Channels * 2

	// DefaultSampleRate matches the stock stimulus files.
	DefaultSampleRate = 44100
)

var (
	// ErrUnsupportedFormat is returned for files that are neither MP3 nor WAV.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")

	// ErrSampleRate is returned when a file's rate differs from the device's.
	ErrSampleRate = errors.New("audio: sample rate mismatch")
)

// PCM is decoded audio: interleaved stereo, signed 16-bit little endian.
type PCM struct {
	SampleRate int
	Data       []byte
}

// Frames returns the number of stereo frames.
func (p PCM) Frames() int {
	return len(p.Data) / frameSize
}

// Duration returns the playing time.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// DecodeFile decodes an .mp3 or .wav file.
func DecodeFile(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return DecodeMP3(f)
	case ".wav":
		return DecodeWAV(f)
	default:
		return PCM{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// DecodeMP3 decodes an MP3 stream. The decoder always yields 16-bit stereo.
func DecodeMP3(r io.Reader) (PCM, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return PCM{}, fmt.Errorf("decode mp3: %w", err)
	}
	var buf bytes.Buffer
	if n := dec.Length(); n > 0 {
		buf.Grow(int(n))
	}
	if _, err := io.Copy(&buf, dec); err != nil {
		return PCM{}, fmt.Errorf("decode mp3: %w", err)
	}
	return PCM{SampleRate: dec.SampleRate(), Data: buf.Bytes()}, nil
}

// DecodeWAV decodes an integer PCM WAV stream of 8, 16, 24 or 32 bits with
// one or two channels.
func DecodeWAV(r io.ReadSeeker) (PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return PCM{}, fmt.Errorf("decode wav: %w: not a PCM wav file", ErrUnsupportedFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("decode wav: %w", err)
	}
	chans := buf.Format.NumChannels
	if chans != 1 && chans != 2 {
		return PCM{}, fmt.Errorf("decode wav: %w: %d channels", ErrUnsupportedFormat, chans)
	}
	depth := buf.SourceBitDepth
	to16, ok := sampleConverters[depth]
	if !ok {
		return PCM{}, fmt.Errorf("decode wav: %w: %d-bit samples", ErrUnsupportedFormat, depth)
	}

	frames := len(buf.Data) / chans
	out := make([]byte, 0, frames*frameSize)
	for i := 0; i < frames; i++ {
		left := to16(buf.Data[i*chans])
		right := left
		if chans == 2 {
			right = to16(buf.Data[i*chans+1])
		}
		out = append(out, byte(left), byte(left>>8), byte(right), byte(right>>8))
	}
	return PCM{SampleRate: buf.Format.SampleRate, Data: out}, nil
}

// sampleConverters scale a decoded sample to signed 16 bits. 8-bit WAV
// samples are unsigned.
var sampleConverters = map[int]func(int) int16{
	8:  func(v int) int16 { return int16((v - 128) << 8) },
	16: func(v int) int16 { return int16(v) },
	24: func(v int) int16 { return int16(v >> 8) },
	32: func(v int) int16 { return int16(v >> 16) },
}

// CheckOpener decodes each file and verifies its sample rate without
// touching an output device. The returned handles are silent.
func CheckOpener(sampleRate int) stimulus.Opener {
	return func(path string) (stimulus.AudioHandle, error) {
		if _, err := decodeFor(path, sampleRate); err != nil {
			return nil, err
		}
		return stimulus.NewSimulatedAudio(filepath.Base(path)), nil
	}
}

func decodeFor(path string, sampleRate int) (PCM, error) {
	pcm, err := DecodeFile(path)
	if err != nil {
		return PCM{}, err
	}
	if pcm.SampleRate != sampleRate {
		return PCM{}, fmt.Errorf("%w: %s is %d Hz, device runs at %d Hz",
			ErrSampleRate, filepath.Base(path), pcm.SampleRate, sampleRate)
	}
	if pcm.Frames() == 0 {
		return PCM{}, fmt.Errorf("audio: %s holds no samples", filepath.Base(path))
	}
	return pcm, nil
}
