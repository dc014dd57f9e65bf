package terminal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"runtime"

	"avstress/internal/response"
)

// KeyName maps a raw input byte to the key name used in configs and logs.
func KeyName(b byte) (string, bool) {
	switch {
	case b == ' ':
		return "space", true
	case b == '\r' || b == '\n':
		return "return", true
	case b == 0x1b:
		return "escape", true
	case b >= 'A' && b <= 'Z':
		return string(rune(b + 'a' - 'A')), true
	case b >= '!' && b <= '~':
		return string(rune(b)), true
	default:
		return "", false
	}
}

// ReadKeys pushes every recognized key read from r into input until r ends
// or ctx is done. Each press is stamped as it is read.
func ReadKeys(ctx context.Context, r io.Reader, input *response.ChannelInput) error {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if key, ok := KeyName(b); ok {
			input.Press(key)
		}
	}
}

// Keyboard reads key presses from a terminal in non-canonical mode.
type Keyboard struct {
	restore func() error
	cancel  context.CancelFunc
	done    chan struct{}
}

// OpenKeyboard switches f to non-canonical, no-echo mode when it is a
// terminal and starts feeding input until ctx is done or Close is called.
func OpenKeyboard(ctx context.Context, f *os.File, input *response.ChannelInput) (*Keyboard, error) {
	restore, err := makeRaw(int(f.Fd()))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	k := &Keyboard{restore: restore, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(k.done)
		ReadKeys(ctx, newInputReader(ctx, f), input)
	}()
	return k, nil
}

// Close stops the reader and restores the terminal mode. On Linux it waits
// for the reader to return; elsewhere the reader ends with the next byte.
func (k *Keyboard) Close() error {
	k.cancel()
	if runtime.GOOS == "linux" {
		<-k.done
	}
	return k.restore()
}
