package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"avstress/internal/session"
)

var errCancelled = errors.New("cancelled by operator")

// promptParticipant asks for a participant number until a valid one is
// entered.
func promptParticipant(in *bufio.Reader, out io.Writer) (string, error) {
	for {
		fmt.Fprint(out, "Participant number: ")
		line, err := in.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			id, perr := session.ParticipantID(line)
			if perr == nil {
				return id, nil
			}
			fmt.Fprintln(out, "Please enter digits only.")
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errCancelled
			}
			return "", err
		}
	}
}

// promptPolicy asks what to do with an existing trial log.
func promptPolicy(in *bufio.Reader, out io.Writer, path string) (session.OverwritePolicy, error) {
	for {
		fmt.Fprintf(out, "%s already exists. [a]ppend, [o]verwrite or [q]uit? ", path)
		line, err := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "append":
			return session.Append, nil
		case "o", "overwrite":
			return session.Overwrite, nil
		case "q", "quit":
			return session.Refuse, errCancelled
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return session.Refuse, errCancelled
			}
			return session.Refuse, err
		}
	}
}

// resolvePolicy picks the overwrite policy from the flags, asking only when
// the log exists and no flag decided it.
func resolvePolicy(appendLog, overwrite bool, path string, in *bufio.Reader, out io.Writer) (session.OverwritePolicy, error) {
	switch {
	case appendLog && overwrite:
		return session.Refuse, fmt.Errorf("--append and --overwrite are mutually exclusive")
	case appendLog:
		return session.Append, nil
	case overwrite:
		return session.Overwrite, nil
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 || in == nil {
		return session.Refuse, nil
	}
	return promptPolicy(in, out, path)
}
