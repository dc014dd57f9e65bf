// Package simulate provides a virtual participant that watches the display,
// listens to the audio and answers on the keyboard queue. It drives end to
// end runs without a person, a screen or a sound card.
package simulate

import (
	"math"
	mathrand "math/rand/v2"
	"sync"
	"time"

	"avstress/internal/present"
	"avstress/internal/response"
	"avstress/internal/scoring"
	"avstress/internal/stimulus"
)

// Profile describes how the virtual participant behaves.
type Profile struct {
	// Accuracy is the probability of pressing the key of the perceived
	// color.
	Accuracy float64

	// MissRate is the probability of not responding at all.
	MissRate float64

	// VisualDominance is the probability of following the visual when the
	// two modalities conflict.
	VisualDominance float64

	// RTMean and RTSD parameterize a normal reaction-time distribution,
	// floored at RTMin.
	RTMean time.Duration
	RTSD   time.Duration
	RTMin  time.Duration

	// ReadTime is the delay before dismissing a text screen.
	ReadTime time.Duration
}

// DefaultProfile is an attentive participant.
func DefaultProfile() Profile {
	return Profile{
		Accuracy:        0.95,
		MissRate:        0.02,
		VisualDominance: 0.7,
		RTMean:          450 * time.Millisecond,
		RTSD:            90 * time.Millisecond,
		RTMin:           150 * time.Millisecond,
		ReadTime:        300 * time.Millisecond,
	}
}

// Participant answers trials through a ChannelInput.
type Participant struct {
	input       *response.ChannelInput
	keys        scoring.KeyMap
	continueKey string
	profile     Profile

	mu      sync.Mutex
	rng     *mathrand.Rand
	heard   stimulus.ColorLabel
	seen    stimulus.ColorLabel
	timers  []*time.Timer
	presses int
	misses  int
}

// NewParticipant creates a participant pressing keys into input.
func NewParticipant(input *response.ChannelInput, keys scoring.KeyMap, continueKey string, profile Profile, rng *mathrand.Rand) *Participant {
	return &Participant{
		input:       input,
		keys:        keys,
		continueKey: continueKey,
		profile:     profile,
		rng:         rng,
	}
}

// Presses returns how many trial responses were scheduled.
func (p *Participant) Presses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presses
}

// Misses returns how many stimuli went unanswered on purpose.
func (p *Participant) Misses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.misses
}

// Stop cancels every pending press.
func (p *Participant) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
}

func (p *Participant) hear(label stimulus.ColorLabel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heard = label
}

func (p *Participant) see(label stimulus.ColorLabel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = label
}

// flipped reacts to a frame becoming visible.
func (p *Participant) flipped(text string, fixation bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case text != "":
		p.schedule(p.continueKey, p.profile.ReadTime)
	case fixation:
		p.heard, p.seen = stimulus.LabelNone, stimulus.LabelNone
	case p.heard != stimulus.LabelNone || p.seen != stimulus.LabelNone:
		p.respond()
		p.heard, p.seen = stimulus.LabelNone, stimulus.LabelNone
	}
}

// respond picks a key and a reaction time for the current stimulus.
func (p *Participant) respond() {
	if p.rng.Float64() < p.profile.MissRate {
		p.misses++
		return
	}

	perceived := p.seen
	switch {
	case !perceived.Valid():
		perceived = p.heard
	case p.heard.Valid() && p.heard != p.seen && p.rng.Float64() >= p.profile.VisualDominance:
		perceived = p.heard
	}
	if p.rng.Float64() >= p.profile.Accuracy {
		perceived = perceived.Complement()
	}

	key, ok := p.keys[perceived]
	if !ok {
		return
	}
	p.presses++
	p.schedule(key, p.reactionTime())
}

func (p *Participant) reactionTime() time.Duration {
	rt := float64(p.profile.RTMean) + p.rng.NormFloat64()*float64(p.profile.RTSD)
	return time.Duration(math.Max(rt, float64(p.profile.RTMin)))
}

func (p *Participant) schedule(key string, after time.Duration) {
	input := p.input
	p.timers = append(p.timers, time.AfterFunc(after, func() {
		input.Press(key)
	}))
	// drop fired timers so long runs do not accumulate them
	if len(p.timers) > 32 {
		p.timers = p.timers[len(p.timers)-8:]
	}
}

// Display wraps an optional real display so the participant sees every
// flipped frame.
type Display struct {
	participant *Participant
	inner       present.Display

	mu       sync.Mutex
	text     string
	fixation bool
}

// NewDisplay creates a display observed by p. inner may be nil.
func NewDisplay(p *Participant, inner present.Display) *Display {
	return &Display{participant: p, inner: inner}
}

// PresentVisual implements present.Display.
func (d *Display) PresentVisual(shape present.Shape, color stimulus.ColorLabel) error {
	if d.inner != nil {
		if err := d.inner.PresentVisual(shape, color); err != nil {
			return err
		}
	}
	d.participant.see(color)
	return nil
}

// PresentFixation implements present.Display.
func (d *Display) PresentFixation() error {
	if d.inner != nil {
		if err := d.inner.PresentFixation(); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.fixation = true
	d.mu.Unlock()
	return nil
}

// PresentText implements present.Display.
func (d *Display) PresentText(text string) error {
	if d.inner != nil {
		if err := d.inner.PresentText(text); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
	return nil
}

// Flip implements present.Display.
func (d *Display) Flip() error {
	if d.inner != nil {
		if err := d.inner.Flip(); err != nil {
			return err
		}
	}
	d.mu.Lock()
	text, fixation := d.text, d.fixation
	d.text, d.fixation = "", false
	d.mu.Unlock()

	d.participant.flipped(text, fixation)
	return nil
}

// audioHandle tells the participant what it heard.
type audioHandle struct {
	stimulus.AudioHandle
	label       stimulus.ColorLabel
	participant *Participant
}

func (h *audioHandle) Play() error {
	if err := h.AudioHandle.Play(); err != nil {
		return err
	}
	h.participant.hear(h.label)
	return nil
}

// Opener wraps inner so p hears every played file. A nil inner plays
// nothing.
func Opener(p *Participant, inner stimulus.Opener) stimulus.Opener {
	if inner == nil {
		inner = stimulus.SimulatedOpener
	}
	return func(path string) (stimulus.AudioHandle, error) {
		h, err := inner(path)
		if err != nil {
			return nil, err
		}
		label, _ := stimulus.LabelFromSource(path)
		return &audioHandle{AudioHandle: h, label: label, participant: p}, nil
	}
}

// Catalog builds a catalog of silent red/blue handles heard by p.
func Catalog(p *Participant) (*stimulus.Catalog, error) {
	open := Opener(p, nil)
	handles := make(map[stimulus.ColorLabel]stimulus.AudioHandle, len(stimulus.Labels))
	for _, l := range stimulus.Labels {
		h, err := open(l.String() + ".mp3")
		if err != nil {
			return nil, err
		}
		handles[l] = h
	}
	return stimulus.NewCatalog(handles)
}
