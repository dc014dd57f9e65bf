package record

import (
	"errors"
)

// Tee writes every row to each sink in order. The first sink is the primary:
// its Exists decides whether a header is needed.
type Tee []Sink

// Exists implements Sink.
func (t Tee) Exists() bool {
	if len(t) == 0 {
		return true
	}
	return t[0].Exists()
}

// WriteHeader implements Sink.
func (t Tee) WriteHeader() error {
	for _, s := range t {
		if s.Exists() {
			continue
		}
		if err := s.WriteHeader(); err != nil {
			return err
		}
	}
	return nil
}

// Append implements Sink. It stops at the first failing sink.
func (t Tee) Append(r Result) error {
	for _, s := range t {
		if err := s.Append(r); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Sink.
func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
