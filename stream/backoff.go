package stream

import (
	"context"
	"time"
)

// MaxAttempts is the hard cap on reconnect/retry attempts before a
// worker gives up and surfaces an error to its caller.
const MaxAttempts = 10

// Backoff implements the 1→2→4→...→60s reconnect/retry schedule used by
// the stream workers. Kept as its own small type here rather than
// reusing exchange/ws.Backoff: the workers in this package retry REST
// calls (gap refetch, HTF polling), not websocket dials.
type Backoff struct {
	attempt int
}

// NewBackoff returns a fresh backoff counter.
func NewBackoff() *Backoff { return &Backoff{} }

// Next returns the delay for the current attempt and advances it.
func (b *Backoff) Next() time.Duration {
	d := time.Duration(1<<uint(b.attempt)) * time.Second
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	b.attempt++
	return d
}

// Sleep waits out Next(), returning false once MaxAttempts is exceeded
// or ctx is cancelled first.
func (b *Backoff) Sleep(ctx context.Context) bool {
	if b.attempt >= MaxAttempts {
		return false
	}
	d := b.Next()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Reset zeroes the attempt counter after a successful operation.
func (b *Backoff) Reset() { b.attempt = 0 }
