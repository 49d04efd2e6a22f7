package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1ureka/owd/internal/protocol"
	"github.com/1ureka/owd/internal/queue"
	"github.com/1ureka/owd/internal/tracker"
	"github.com/1ureka/owd/internal/util"
)

// ErrSendClosed is returned by Send after CloseSend.
var ErrSendClosed = errors.New("originator no longer accepts payloads")

// Originator drives the sending side of the exchange on one stream:
//
//	PAYLOAD →   (send loop, records sentAt)
//	← ACK1      (ack loop, computes the round trip)
//	ACK2 →      (ack loop, relays the round trip)
type Originator struct {
	link *link
	opts options

	outbox  *queue.Queue[*protocol.Envelope]
	pending *tracker.Tracker[int64] // id → sentAt

	// queued counts payloads accepted by Send and not yet written (or
	// dropped by a failed write).
	queued atomic.Int64
}

// NewOriginator prepares an originator on rw. Call Run to start the loops.
func NewOriginator(ctx context.Context, rw io.ReadWriteCloser, opts ...Option) *Originator {
	o := &Originator{
		opts:   defaultOptions(),
		outbox: queue.New[*protocol.Envelope](),
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	o.pending = tracker.New[int64](o.opts.ttl)
	o.link = newLink(ctx, rw)
	return o
}

// Send marshals payload to JSON and queues it for transmission. Payloads are
// transmitted one envelope each, in the order Send was called. A payload that
// cannot be framed is rejected with an error wrapping protocol.ErrTooLarge and
// the link is unaffected.
func (o *Originator) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	env := protocol.NewPayload(o.opts.newID(), data)
	if err := protocol.CheckSize(env); err != nil {
		return fmt.Errorf("send payload: %w", err)
	}

	o.queued.Add(1)
	if err := o.outbox.Put(env); err != nil {
		o.queued.Add(-1)
		return ErrSendClosed
	}
	return nil
}

// CloseSend ends the send loop once every queued payload is written. The
// acknowledgment loop keeps running so in-flight exchanges can complete.
func (o *Originator) CloseSend() {
	o.outbox.Close()
}

// Pending returns the number of payloads queued or awaiting ACK1.
func (o *Originator) Pending() int {
	return int(o.queued.Load()) + o.pending.Len()
}

// Done returns a channel closed when the link has shut down.
func (o *Originator) Done() <-chan struct{} {
	return o.link.ctx.Done()
}

// Run starts the send loop, the acknowledgment loop and the eviction sweep,
// and blocks until the link shuts down. It returns nil when the link ended in
// an orderly way (peer hang-up, Close, cancellation) and the failure
// otherwise.
func (o *Originator) Run() error {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if err := o.sendLoop(); err != nil {
			o.link.shutdown(err)
		}
	}()

	go func() {
		defer wg.Done()
		o.link.shutdown(o.ackLoop())
	}()

	go func() {
		defer wg.Done()
		o.pending.Run(o.link.ctx, o.opts.sweep, o.onExpire)
	}()

	wg.Wait()
	return o.link.err()
}

// Flush waits until every queued payload has been acknowledged or evicted,
// the link has shut down, or ctx is done.
func (o *Originator) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for o.Pending() > 0 {
		select {
		case <-ticker.C:
		case <-o.link.ctx.Done():
			return o.link.err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close shuts the link down. Loops started by Run exit.
func (o *Originator) Close() error {
	o.outbox.Close()
	o.link.shutdown(errLinkClosed)
	return nil
}

// sendLoop transmits queued payloads in FIFO order until the outbox is
// closed and drained or the link ends. A write failure is returned.
func (o *Originator) sendLoop() error {
	for {
		env, err := o.outbox.Get(o.link.ctx)
		if err != nil {
			return nil
		}

		id := env.ID
		err = o.link.write(env, func() {
			o.pending.Put(id, o.opts.clock())
		})
		o.queued.Add(-1)
		if err != nil {
			o.pending.Delete(id)
			return fmt.Errorf("[%08x] send payload: %w", o.link.id, err)
		}

		util.Stats.AddPayload()
		util.LogDebug("[%08x] sent %s", o.link.id, id)
	}
}

// ackLoop reads acknowledgments until the link ends and answers each ACK1
// whose exchange is still pending with an ACK2.
func (o *Originator) ackLoop() error {
	for {
		env, err := o.link.read()
		receivedAt := o.opts.clock()
		if err != nil {
			return err
		}

		switch env.Kind {
		case protocol.KindAck1:
			sentAt, ok := o.pending.Get(env.ID)
			if !ok {
				// Already answered or evicted.
				util.LogDebug("[%08x] ignoring ACK1 for unknown id %s", o.link.id, env.ID)
				continue
			}

			roundTrip := receivedAt - sentAt
			err := o.link.write(protocol.NewAck2(env.ID, roundTrip), nil)
			// Kept until ACK2 is written so Flush does not return early.
			o.pending.Delete(env.ID)
			if err != nil {
				return fmt.Errorf("[%08x] send ack: %w", o.link.id, err)
			}
			util.LogDebug("[%08x] %s round trip %v", o.link.id, env.ID, time.Duration(roundTrip))

		default:
			util.LogDebug("[%08x] ignoring unexpected %s for %s", o.link.id, env.Kind, env.ID)
		}
	}
}

func (o *Originator) onExpire(e tracker.Expired[int64]) {
	util.Stats.AddTimedOut()
	util.LogWarning("[%08x] exchange %s timed out after %v without ACK1",
		o.link.id, e.ID, e.Age.Round(time.Millisecond))
}
