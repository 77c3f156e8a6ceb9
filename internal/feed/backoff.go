package feed

import "time"

// Backoff is a doubling delay between a floor and a ceiling.
// Not safe for concurrent use.
type Backoff struct {
	min     time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a backoff starting at min.
func NewBackoff(min, max time.Duration) *Backoff {
	return &Backoff{min: min, max: max, current: min}
}

// Next returns the delay to wait now and doubles the following one, capped
// at the ceiling.
func (b *Backoff) Next() time.Duration {
	delay := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset returns the delay to the floor.
func (b *Backoff) Reset() {
	b.current = b.min
}
