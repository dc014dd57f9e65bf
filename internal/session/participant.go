// Package session runs a whole experiment for one participant: instruction
// screens, the practice block, every logged block with breaks between them,
// and the closing screen.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"avstress/internal/record"
)

// ErrInvalidParticipant is returned for identifiers that are not numeric.
var ErrInvalidParticipant = errors.New("session: participant number must be numeric")

// ErrLogExists is returned when the participant's log already exists and the
// policy is to refuse.
var ErrLogExists = errors.New("session: log already exists")

// ParticipantID normalizes a numeric participant number to P%03d, so "7",
// "007" and "P007" all yield "P007".
func ParticipantID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "P"), "p")
	if s == "" {
		return "", ErrInvalidParticipant
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidParticipant, raw)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidParticipant, raw)
	}
	return fmt.Sprintf("P%03d", n), nil
}

// LogPath returns the trial log path of a participant.
func LogPath(dataDir, participant string) string {
	return filepath.Join(dataDir, "experiment_results_"+participant+".csv")
}

// OverwritePolicy decides what happens when a participant's log exists.
type OverwritePolicy int

const (
	// Refuse fails with ErrLogExists.
	Refuse OverwritePolicy = iota
	// Append adds rows to the existing log without a second header.
	Append
	// Overwrite truncates the existing log.
	Overwrite
)

// String returns the policy name.
func (p OverwritePolicy) String() string {
	switch p {
	case Append:
		return "append"
	case Overwrite:
		return "overwrite"
	default:
		return "refuse"
	}
}

// OpenLog opens the CSV log at path under policy.
func OpenLog(path string, policy OverwritePolicy) (*record.CSVSink, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() > 0:
		switch policy {
		case Refuse:
			return nil, fmt.Errorf("%w: %s", ErrLogExists, path)
		case Overwrite:
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("session: remove old log: %w", err)
			}
		}
	case err != nil && !os.IsNotExist(err):
		return nil, fmt.Errorf("session: stat log: %w", err)
	}
	return record.OpenCSV(path)
}
