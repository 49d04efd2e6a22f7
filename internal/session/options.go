// Package session implements the latency-measurement exchange over one
// stream: the originator's send and acknowledgment loops and the responder's
// receive loop.
package session

import (
	"time"

	"github.com/1ureka/owd/internal/protocol"
)

// Clock returns the current time in nanoseconds. Values from one Clock are
// only ever subtracted from each other, never compared across peers.
type Clock func() int64

var processStart = time.Now()

// MonotonicClock reads the monotonic clock as nanoseconds since process
// start, so wall-clock steps never leak into a measured span.
func MonotonicClock() int64 {
	return int64(time.Since(processStart))
}

type options struct {
	clock Clock
	newID func() string
	ttl   time.Duration
	sweep time.Duration
}

func defaultOptions() options {
	return options{
		clock: MonotonicClock,
		newID: protocol.NewID,
	}
}

// Option customizes an Originator or Responder.
type Option func(*options)

// WithClock replaces the monotonic clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator replaces the UUID generator used for new exchanges.
func WithIDGenerator(f func() string) Option {
	return func(o *options) { o.newID = f }
}

// WithEviction drops pending entries older than ttl, checking every sweep.
// Eviction is disabled unless this option is given with a positive ttl.
func WithEviction(ttl, sweep time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
		o.sweep = sweep
	}
}
