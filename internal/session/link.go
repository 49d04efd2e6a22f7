package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/1ureka/owd/internal/protocol"
	"github.com/1ureka/owd/internal/util"
)

// errLinkClosed is the shutdown cause when the local side closes a link.
var errLinkClosed = errors.New("link closed locally")

type addrStream interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// link holds the lifecycle state of one stream shared by the loops running
// on it. Reads are performed by a single loop; writes from any loop are
// serialized so frames never interleave.
type link struct {
	// Identity
	id uint32

	// Lifecycle
	ctx       context.Context
	cancel    context.CancelCauseFunc
	closeOnce sync.Once

	// Stream
	rw  io.ReadWriteCloser
	dec *protocol.Decoder

	wmu sync.Mutex
	enc *protocol.Encoder
}

// newLink wraps rw and closes it once parentCtx is done.
func newLink(parentCtx context.Context, rw io.ReadWriteCloser) *link {
	ctx, cancel := context.WithCancelCause(parentCtx)

	var id uint32
	if s, ok := rw.(addrStream); ok {
		id = util.LinkID(s.LocalAddr().String(), s.RemoteAddr().String())
	} else {
		id = util.LinkID(fmt.Sprintf("%p", rw), "")
	}

	l := &link{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		rw:     rw,
		dec:    protocol.NewDecoder(rw),
		enc:    protocol.NewEncoder(rw),
	}

	util.Stats.AddLink()
	util.LogDebug("[%08x] link opened", l.id)

	// Closing the stream is the only way to unblock a pending read.
	go func() {
		<-ctx.Done()
		l.shutdown(context.Cause(ctx))
	}()

	return l
}

// write encodes env while holding the write lock. before, when non-nil, runs
// under the same lock immediately ahead of the write so a timestamp taken
// there is as close to transmission as possible.
func (l *link) write(env *protocol.Envelope, before func()) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()

	if err := l.ctx.Err(); err != nil {
		return context.Cause(l.ctx)
	}

	if before != nil {
		before()
	}
	n, err := l.enc.Encode(env)
	util.Stats.AddSent(n)
	if err != nil {
		return fmt.Errorf("write %s %s: %w", env.Kind, env.ID, err)
	}
	return nil
}

// read blocks for the next envelope.
func (l *link) read() (*protocol.Envelope, error) {
	env, n, err := l.dec.Decode()
	util.Stats.AddRecv(n)
	return env, err
}

// shutdown cancels the link with cause and closes the stream exactly once,
// regardless of which loop notices the failure first.
func (l *link) shutdown(cause error) {
	l.closeOnce.Do(func() {
		if cause == nil {
			cause = errLinkClosed
		}
		l.cancel(cause)
		l.rw.Close()
		util.Stats.RemoveLink()

		if isOrderly(cause) {
			util.LogDebug("[%08x] link closed: %v", l.id, cause)
		} else {
			util.LogWarning("[%08x] link closed: %v", l.id, cause)
		}
	})
}

// err returns the reason the link ended, or nil for an orderly close.
func (l *link) err() error {
	cause := context.Cause(l.ctx)
	if isOrderly(cause) {
		return nil
	}
	return cause
}

// isOrderly reports whether cause is a normal end of a link: the peer hung
// up, the local side closed it, or the owner cancelled it.
func isOrderly(cause error) bool {
	return cause == nil ||
		errors.Is(cause, protocol.ErrClosed) ||
		errors.Is(cause, errLinkClosed) ||
		errors.Is(cause, context.Canceled)
}
