package stimulus

import (
	"fmt"
	"os"
	"path/filepath"
)

// Opener loads the sound at path into a playable handle.
type Opener func(path string) (AudioHandle, error)

// Catalog maps every label of the vocabulary to its audio handle. It is built
// once per run and is read-only afterwards.
type Catalog struct {
	handles map[ColorLabel]AudioHandle
}

// NewCatalog builds a catalog from already-open handles. Every label must be
// present and each handle's source name must encode its own label.
func NewCatalog(handles map[ColorLabel]AudioHandle) (*Catalog, error) {
	c := &Catalog{handles: make(map[ColorLabel]AudioHandle, len(Labels))}
	for _, l := range Labels {
		h, ok := handles[l]
		if !ok || h == nil {
			return nil, fmt.Errorf("%w: no audio for %s", ErrResourceUnavailable, l)
		}
		if got, ok := LabelFromSource(h.SourceLabel()); !ok || got != l {
			return nil, fmt.Errorf("%w: audio %q does not encode label %s", ErrResourceUnavailable, h.SourceLabel(), l)
		}
		c.handles[l] = h
	}
	return c, nil
}

// LoadCatalog resolves <dir>/<label><ext> for every label and opens it.
// A missing file is a hard error; no label silently falls back to silence.
func LoadCatalog(dir, ext string, open Opener) (*Catalog, error) {
	handles := make(map[ColorLabel]AudioHandle, len(Labels))
	for _, l := range Labels {
		path := filepath.Join(dir, l.String()+ext)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, path, err)
		}
		h, err := open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrResourceUnavailable, path, err)
		}
		handles[l] = h
	}
	return NewCatalog(handles)
}

// Audio returns the handle for label.
func (c *Catalog) Audio(label ColorLabel) (AudioHandle, error) {
	h, ok := c.handles[label]
	if !ok {
		return nil, fmt.Errorf("%w: no audio for %s", ErrResourceUnavailable, label)
	}
	return h, nil
}

// StopAll stops every handle in the catalog.
func (c *Catalog) StopAll() error {
	var firstErr error
	for _, l := range Labels {
		if err := c.handles[l].Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
