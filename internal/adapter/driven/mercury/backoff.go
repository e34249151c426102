package mercury

import "time"

const (
	DefaultBackoffMin = 500 * time.Millisecond
	DefaultBackoffMax = 32 * time.Second
)

// Backoff yields exponentially growing reconnect delays: min, 2*min, ... capped at max.
type Backoff struct {
	Min, Max time.Duration
	next     time.Duration
}

func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = DefaultBackoffMin
	}
	if max < min {
		max = min
	}
	return &Backoff{Min: min, Max: max, next: min}
}

func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}
	return d
}

func (b *Backoff) Reset() {
	b.next = b.Min
}
