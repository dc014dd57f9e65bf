package terminal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avstress/internal/response"
)

func TestKeyboardCloseLeavesLaterKeys(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	input := response.NewChannelInput(8)
	kb, err := OpenKeyboard(context.Background(), r, input)
	require.NoError(t, err)

	_, err = w.Write([]byte("r"))
	require.NoError(t, err)
	ev, ok, err := input.WaitForKey(context.Background(), nil, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r", ev.Key)

	closed := make(chan error, 1)
	go func() { closed <- kb.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a pending read")
	}

	// A key pressed after Close stays in the input for the next reader.
	_, err = w.Write([]byte("b"))
	require.NoError(t, err)
	buf := make([]byte, 1)
	_, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "b", string(buf))

	_, ok, err = input.WaitForKey(context.Background(), nil, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
