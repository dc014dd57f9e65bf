package stimulus

import (
	"sync"
)

// SimulatedAudio is an AudioHandle that only records calls. Hooks run on
// Play and Stop when set.
type SimulatedAudio struct {
	Source string
	OnPlay func(h *SimulatedAudio)

	mu      sync.Mutex
	plays   int
	stops   int
	playing bool
}

// NewSimulatedAudio creates a simulated handle for source.
func NewSimulatedAudio(source string) *SimulatedAudio {
	return &SimulatedAudio{Source: source}
}

// Play marks the handle as playing.
func (s *SimulatedAudio) Play() error {
	s.mu.Lock()
	s.plays++
	s.playing = true
	hook := s.OnPlay
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	return nil
}

// Stop marks the handle as stopped.
func (s *SimulatedAudio) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.playing = false
	return nil
}

// SourceLabel returns the configured source name.
func (s *SimulatedAudio) SourceLabel() string {
	return s.Source
}

// Plays returns how many times Play was called.
func (s *SimulatedAudio) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

// Stops returns how many times Stop was called.
func (s *SimulatedAudio) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Playing reports whether Play was called more recently than Stop.
func (s *SimulatedAudio) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SimulatedOpener opens SimulatedAudio handles without touching a device.
func SimulatedOpener(path string) (AudioHandle, error) {
	return NewSimulatedAudio(path), nil
}

// NewSimulatedCatalog returns a catalog of red.mp3/blue.mp3 simulated handles.
func NewSimulatedCatalog() (*Catalog, map[ColorLabel]*SimulatedAudio) {
	raw := map[ColorLabel]*SimulatedAudio{
		LabelRed:  NewSimulatedAudio("red.mp3"),
		LabelBlue: NewSimulatedAudio("blue.mp3"),
	}
	handles := make(map[ColorLabel]AudioHandle, len(raw))
	for l, h := range raw {
		handles[l] = h
	}
	c, err := NewCatalog(handles)
	if err != nil {
		panic(err)
	}
	return c, raw
}
