package response

import (
	"context"
	"slices"
	"time"

	"avstress/internal/clock"
)

// ChannelInput is an event-driven key queue. Producers (a terminal reader,
// a simulated participant) push stamped events; WaitForKey suspends on the
// channel instead of polling.
type ChannelInput struct {
	events chan KeyEvent
}

// NewChannelInput creates a queue holding up to buffer unread events.
func NewChannelInput(buffer int) *ChannelInput {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelInput{events: make(chan KeyEvent, buffer)}
}

// Press queues key stamped with the current instant. It reports false when
// the queue is full and the press was dropped.
func (c *ChannelInput) Press(key string) bool {
	return c.Send(KeyEvent{Key: key, At: clock.Now()})
}

// Send queues a pre-stamped event.
func (c *ChannelInput) Send(ev KeyEvent) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// ClearPendingKeys drains the queue.
func (c *ChannelInput) ClearPendingKeys() error {
	for {
		select {
		case <-c.events:
		default:
			return nil
		}
	}
}

// WaitForKey implements Input.
func (c *ChannelInput) WaitForKey(ctx context.Context, keys []string, timeout time.Duration) (KeyEvent, bool, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return KeyEvent{}, false, ctx.Err()
		case <-expired:
			return KeyEvent{}, false, nil
		case ev := <-c.events:
			if len(keys) == 0 || slices.Contains(keys, ev.Key) {
				return ev, true, nil
			}
		}
	}
}
