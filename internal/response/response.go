// Package response collects one timed key press per trial.
package response

import (
	"context"
	"slices"
	"time"

	"avstress/internal/clock"
)

// NoResponseKey is recorded when the response window closes without a press.
const NoResponseKey = "NoResponse"

// KeyEvent is a key press stamped on the clock package's monotonic base.
type KeyEvent struct {
	Key string
	At  clock.Instant
}

// Input is the keyboard surface.
type Input interface {
	// ClearPendingKeys discards every queued event.
	ClearPendingKeys() error

	// WaitForKey suspends until a key in keys arrives, timeout elapses or ctx
	// is done. ok is false on timeout. A non-positive timeout waits for ctx.
	WaitForKey(ctx context.Context, keys []string, timeout time.Duration) (ev KeyEvent, ok bool, err error)
}

// Response is the outcome of one response window.
type Response struct {
	Key       string
	RT        time.Duration
	Responded bool
}

// NoResponse returns the outcome of a window that closed without a press.
func NoResponse() Response {
	return Response{Key: NoResponseKey}
}

// Collector waits for one of a fixed key set within a window anchored at
// stimulus onset.
type Collector struct {
	input   Input
	keys    []string
	timeout time.Duration
}

// NewCollector creates a collector accepting keys within timeout of onset.
func NewCollector(input Input, keys []string, timeout time.Duration) *Collector {
	return &Collector{
		input:   input,
		keys:    slices.Clone(keys),
		timeout: timeout,
	}
}

// Keys returns the accepted keys.
func (c *Collector) Keys() []string {
	return slices.Clone(c.keys)
}

// Clear drops stale presses queued before the next stimulus.
func (c *Collector) Clear() error {
	return c.input.ClearPendingKeys()
}

// Await waits for a response to the trial whose zero point sync holds. The
// reaction time runs from the zero point to the event's own timestamp, so
// time spent between arming and this call does not inflate it. Presses
// stamped before the zero point belong to an earlier trial and are skipped.
func (c *Collector) Await(ctx context.Context, sync *clock.Sync) (Response, error) {
	deadline := sync.Onset().Add(c.timeout)
	for {
		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return NoResponse(), nil
		}

		ev, ok, err := c.input.WaitForKey(ctx, c.keys, remaining)
		if err != nil {
			return Response{}, err
		}
		if !ok {
			return NoResponse(), nil
		}
		if ev.At < sync.Onset() || !slices.Contains(c.keys, ev.Key) {
			continue
		}

		rt := sync.Since(ev.At)
		if rt > c.timeout {
			return NoResponse(), nil
		}
		return Response{Key: ev.Key, RT: rt, Responded: true}, nil
	}
}
