package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/1ureka/owd/internal/latency"
	"github.com/1ureka/owd/internal/protocol"
	"github.com/1ureka/owd/internal/queue"
	"github.com/1ureka/owd/internal/tracker"
	"github.com/1ureka/owd/internal/util"
)

// ErrUnknownID reports an ACK2 whose exchange the responder never saw, or
// has already completed or evicted.
var ErrUnknownID = errors.New("ack for unknown exchange id")

// Receipt is what the responder remembers between PAYLOAD and ACK2.
type Receipt struct {
	ReceivedAt int64 // responder clock, nanoseconds
	Payload    json.RawMessage
}

// Record is one completed measurement delivered to the consumer.
type Record struct {
	ID      string
	Payload json.RawMessage
	latency.Sample
}

// Decode unmarshals the record's payload into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Payload, v)
}

// Responder serves any number of streams. All of them share one
// pending-receipt tracker and one consumer queue, created with the responder
// and released by Close.
type Responder struct {
	opts options

	receipts *tracker.Tracker[Receipt]
	inbox    *queue.Queue[Record]
}

// NewResponder creates a responder with empty shared state.
func NewResponder(opts ...Option) *Responder {
	r := &Responder{
		opts:  defaultOptions(),
		inbox: queue.New[Record](),
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	r.receipts = tracker.New[Receipt](r.opts.ttl)
	return r
}

// Run sweeps stale receipts until ctx is done. It returns immediately when
// eviction is disabled.
func (r *Responder) Run(ctx context.Context) {
	r.receipts.Run(ctx, r.opts.sweep, func(e tracker.Expired[Receipt]) {
		util.Stats.AddTimedOut()
		util.LogWarning("exchange %s timed out after %v without ACK2", e.ID, e.Age.Round(time.Millisecond))
	})
}

// Next blocks for the next completed record. Records arrive in the order
// their ACK2 was processed. It returns queue.ErrClosed after Close once every
// record has been consumed.
func (r *Responder) Next(ctx context.Context) (Record, error) {
	return r.inbox.Get(ctx)
}

// Pending returns the number of payloads awaiting ACK2 across all streams.
func (r *Responder) Pending() int {
	return r.receipts.Len()
}

// Close stops delivering records and drops every pending receipt.
func (r *Responder) Close() {
	r.inbox.Close()
	r.receipts.Clear()
}

// Serve runs the receive loop for one stream until the stream ends or ctx is
// done, then closes it. Envelopes are processed strictly one at a time. It
// returns nil for an orderly end and the failure otherwise (for example a
// malformed frame); either way no other stream is affected.
func (r *Responder) Serve(ctx context.Context, rw io.ReadWriteCloser) error {
	l := newLink(ctx, rw)

	for {
		env, err := l.read()
		now := r.opts.clock()
		if err != nil {
			l.shutdown(err)
			break
		}

		switch env.Kind {
		case protocol.KindPayload:
			r.receipts.Put(env.ID, Receipt{ReceivedAt: now, Payload: env.Payload})
			if err := l.write(protocol.NewAck1(env.ID), nil); err != nil {
				r.receipts.Delete(env.ID)
				l.shutdown(err)
				return l.err()
			}

		case protocol.KindAck2:
			if err := r.complete(env, now); err != nil {
				util.Stats.AddRejected()
				util.LogWarning("[%08x] discarding ACK2: %v", l.id, err)
			}

		default:
			util.LogDebug("[%08x] ignoring unexpected %s for %s", l.id, env.Kind, env.ID)
		}
	}

	return l.err()
}

// complete closes the exchange of an ACK2 received at secondReceipt.
func (r *Responder) complete(env *protocol.Envelope, secondReceipt int64) error {
	rc, ok := r.receipts.Take(env.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownID, env.ID)
	}

	rec := Record{
		ID:      env.ID,
		Payload: rc.Payload,
		Sample: latency.NewSample(
			time.Duration(env.RoundTrip),
			time.Duration(secondReceipt-rc.ReceivedAt),
		),
	}
	if err := r.inbox.Put(rec); err != nil {
		return fmt.Errorf("deliver %s: %w", env.ID, err)
	}

	util.Stats.AddCompleted()
	util.LogDebug("%s %s", env.ID, rec.Sample)
	return nil
}
