// Package seed derives independent, reproducible random streams for each
// participant and block from a single session seed. Re-running with the same
// seed regenerates the same trial order and ITI draws.
package seed

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand/v2"

	"golang.org/x/crypto/hkdf"
)

// Size is the length of a session seed in bytes.
const Size = 32

// Purposes of derived streams.
const (
	PurposeTrials = "trials"
	PurposeITI    = "iti"
)

// ErrInvalidSeed is returned for seeds that are not Size bytes of hex.
var ErrInvalidSeed = errors.New("seed: invalid seed")

// Seed is the master secret of a session.
type Seed [Size]byte

// New draws a fresh seed from the system CSPRNG.
func New() (Seed, error) {
	var s Seed
	if _, err := io.ReadFull(rand.Reader, s[:]); err != nil {
		return Seed{}, fmt.Errorf("seed: read random: %w", err)
	}
	return s, nil
}

// Parse decodes a hex seed.
func Parse(s string) (Seed, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if len(raw) != Size {
		return Seed{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSeed, Size, len(raw))
	}
	var out Seed
	copy(out[:], raw)
	return out, nil
}

// String returns the hex form.
func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// Stream returns the random stream for (participant, block, purpose).
func (s Seed) Stream(participant string, block int, purpose string) *mathrand.Rand {
	info := fmt.Sprintf("avstress/block/%d/%s", block, purpose)
	reader := hkdf.New(sha256.New, s[:], []byte(participant), []byte(info))

	var buf [16]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		// hkdf only fails after 255*32 bytes of output.
		panic(fmt.Sprintf("seed: hkdf read: %v", err))
	}
	return mathrand.New(mathrand.NewPCG(
		binary.BigEndian.Uint64(buf[:8]),
		binary.BigEndian.Uint64(buf[8:]),
	))
}
