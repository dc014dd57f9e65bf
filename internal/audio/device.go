package audio

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"avstress/internal/stimulus"
)

// voice is one playback stream on the output device. *oto.Player
// implements it.
type voice interface {
	Play()
	Pause()
	IsPlaying() bool
	Seek(offset int64, whence int) (int64, error)
	Err() error
}

// Options configures the output device.
type Options struct {
	SampleRate int

	// BufferSize is the device buffer. It is the bulk of the delay between
	// Play and audible sound; zero uses the driver default.
	BufferSize time.Duration
}

// Device owns the process-wide output context. Only one Device can be
// opened per process.
type Device struct {
	ctx        *oto.Context
	sampleRate int
	newVoice   func(r io.ReadSeeker) voice
}

// OpenDevice opens the default output device and waits until it is ready.
func OpenDevice(opts Options) (*Device, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   opts.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: open device: %w", err)
	}
	<-ready
	return &Device{
		ctx:        ctx,
		sampleRate: opts.SampleRate,
		newVoice:   func(r io.ReadSeeker) voice { return ctx.NewPlayer(r) },
	}, nil
}

// SampleRate returns the device rate every stimulus must match.
func (d *Device) SampleRate() int {
	return d.sampleRate
}

// Opener returns a stimulus.Opener that decodes each file once and binds
// it to its own stream on the device.
func (d *Device) Opener() stimulus.Opener {
	return func(path string) (stimulus.AudioHandle, error) {
		pcm, err := decodeFor(path, d.sampleRate)
		if err != nil {
			return nil, err
		}
		return newClip(filepath.Base(path), d.newVoice(bytes.NewReader(pcm.Data)), pcm.Duration()), nil
	}
}

// Close suspends output.
func (d *Device) Close() error {
	return d.ctx.Suspend()
}

// Clip is a decoded sound with its own paused stream. Play rewinds and
// unpauses it; Stop pauses and rewinds it.
type Clip struct {
	source   string
	duration time.Duration

	mu sync.Mutex
	v  voice
}

func newClip(source string, v voice, duration time.Duration) *Clip {
	return &Clip{source: source, duration: duration, v: v}
}

// Play starts the clip from its first sample.
func (c *Clip) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.rewindLocked(); err != nil {
		return err
	}
	c.v.Play()
	if err := c.v.Err(); err != nil {
		return fmt.Errorf("audio: play %s: %w", c.source, err)
	}
	return nil
}

// Stop silences the clip. Stopping a paused clip is a no-op.
func (c *Clip) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rewindLocked()
}

func (c *Clip) rewindLocked() error {
	c.v.Pause()
	if _, err := c.v.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("audio: rewind %s: %w", c.source, err)
	}
	return nil
}

// Playing reports whether the clip is still sounding.
func (c *Clip) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v.IsPlaying()
}

// Duration returns the decoded length.
func (c *Clip) Duration() time.Duration {
	return c.duration
}

// SourceLabel returns the file name the clip was decoded from.
func (c *Clip) SourceLabel() string {
	return c.source
}
