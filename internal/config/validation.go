package config

import (
	"errors"
	"fmt"
	"strings"

	"avstress/internal/logging"
	"avstress/internal/present"
	"avstress/internal/seed"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Version < 1 || c.Version > Version {
		add("version", "unsupported version %d (current: %d)", c.Version, Version)
	}

	errs = append(errs, validateSession(&c.Session)...)
	errs = append(errs, validateKeys(&c.Keys)...)

	if c.Stimuli.Dir == "" {
		add("stimuli.dir", "is required")
	}
	switch strings.ToLower(c.Stimuli.Ext) {
	case ".mp3", ".wav":
	default:
		add("stimuli.ext", "must be .mp3 or .wav, got %q", c.Stimuli.Ext)
	}
	if c.Stimuli.SampleRate <= 0 {
		add("stimuli.sample_rate", "must be positive")
	}
	if c.Stimuli.BufferMs < 0 {
		add("stimuli.buffer_ms", "must not be negative")
	}

	switch c.Display.Surface {
	case SurfaceWindow, SurfaceTerminal:
	default:
		add("display.surface", "must be %q or %q, got %q", SurfaceWindow, SurfaceTerminal, c.Display.Surface)
	}
	if !c.Display.Fullscreen && c.Display.Surface == SurfaceWindow && (c.Display.Width <= 0 || c.Display.Height <= 0) {
		add("display", "a windowed display needs a width and height")
	}

	if c.Practice.Enabled {
		if pc, err := c.PracticeBlock(); err != nil {
			add("practice.types", "%v", err)
		} else if err := pc.Validate(); err != nil {
			add("practice", "%v", err)
		}
	}

	if len(c.Blocks) == 0 {
		add("blocks", "at least one block is required")
	}
	seen := make(map[int]bool, len(c.Blocks))
	adapting := -1
	for i, b := range c.Blocks {
		if b.Adapting {
			switch {
			case adapting >= 0:
				add(fmt.Sprintf("blocks[%d].adapting", i), "only one adapting block is allowed, blocks[%d] is already adapting", adapting)
			case i != len(c.Blocks)-1:
				add(fmt.Sprintf("blocks[%d].adapting", i), "the adapting block must be the final block")
			}
			if adapting < 0 {
				adapting = i
			}
		}
		field := fmt.Sprintf("blocks[%d]", i)
		if b.Number <= 0 {
			add(field+".number", "must be positive")
		} else if seen[b.Number] {
			add(field+".number", "duplicate block number %d", b.Number)
		}
		seen[b.Number] = true

		bc, err := b.Block()
		if err != nil {
			add(field+".types", "%v", err)
			continue
		}
		if err := bc.Validate(); err != nil {
			add(field, "%v", err)
		}
	}

	if len(c.Text.Intro) == 0 {
		add("text.intro", "at least one instruction screen is required")
	}

	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateSession(s *SessionConfig) ValidationErrors {
	var errs ValidationErrors

	if s.DataDir == "" {
		errs = append(errs, ValidationError{Field: "session.data_dir", Message: "is required"})
	}
	if s.Seed != "" {
		if _, err := seed.Parse(s.Seed); err != nil {
			errs = append(errs, ValidationError{Field: "session.seed", Message: err.Error()})
		}
	}
	if _, err := present.ParseShape(s.Shape); err != nil {
		errs = append(errs, ValidationError{Field: "session.shape", Message: err.Error()})
	}
	if s.FixationMs < 0 {
		errs = append(errs, ValidationError{Field: "session.fixation_ms", Message: "must not be negative"})
	}
	if s.ResponseWindowMs <= 0 {
		errs = append(errs, ValidationError{Field: "session.response_window_ms", Message: "must be positive"})
	}
	if s.InstructionMs < 0 || s.BreakMs < 0 {
		errs = append(errs, ValidationError{Field: "session", Message: "screen times must not be negative"})
	}
	if s.ContinueKey == "" {
		errs = append(errs, ValidationError{Field: "session.continue_key", Message: "is required"})
	}
	if strings.ContainsAny(s.AbortFile, `/\`) {
		errs = append(errs, ValidationError{Field: "session.abort_file", Message: "must be a bare file name"})
	}
	return errs
}

func validateKeys(k *KeysConfig) ValidationErrors {
	var errs ValidationErrors
	if k.Red == "" || k.Blue == "" {
		errs = append(errs, ValidationError{Field: "keys", Message: "a key is required for every color"})
	} else if k.Red == k.Blue {
		errs = append(errs, ValidationError{Field: "keys", Message: fmt.Sprintf("red and blue share key %q", k.Red)})
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors
	if _, err := logging.ParseLevel(l.Level); err != nil {
		errs = append(errs, ValidationError{Field: "logging.level", Message: err.Error()})
	}
	if _, err := logging.ParseFormat(l.Format); err != nil {
		errs = append(errs, ValidationError{Field: "logging.format", Message: err.Error()})
	}
	switch strings.ToLower(l.Output) {
	case "", "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{Field: "logging.file_path", Message: "is required for file output"})
		}
	default:
		errs = append(errs, ValidationError{Field: "logging.output", Message: fmt.Sprintf("unknown output %q", l.Output)})
	}
	return errs
}

// IsValidationError reports whether err carries configuration problems.
func IsValidationError(err error) bool {
	var errs ValidationErrors
	var one *ValidationError
	return errors.As(err, &errs) || errors.As(err, &one)
}
