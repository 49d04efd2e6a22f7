package session

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/1ureka/owd/internal/protocol"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// tcpPair returns both ends of a loopback TCP connection. Real sockets are
// used instead of net.Pipe because the protocol relies on the stream
// buffering writes from both peers at once.
func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err = net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

// rawPeer speaks the wire protocol by hand so tests can script the remote
// side of an exchange, including misbehaviour.
type rawPeer struct {
	t    *testing.T
	conn net.Conn
	enc  *protocol.Encoder
	dec  *protocol.Decoder
}

func newRawPeer(t *testing.T, conn net.Conn) *rawPeer {
	return &rawPeer{
		t:    t,
		conn: conn,
		enc:  protocol.NewEncoder(conn),
		dec:  protocol.NewDecoder(conn),
	}
}

func (p *rawPeer) send(env *protocol.Envelope) {
	p.t.Helper()
	if _, err := p.enc.Encode(env); err != nil {
		p.t.Fatalf("raw peer write failed: %v", err)
	}
}

func (p *rawPeer) recv() *protocol.Envelope {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	env, _, err := p.dec.Decode()
	if err != nil {
		p.t.Fatalf("raw peer read failed: %v", err)
	}
	return env
}

func (p *rawPeer) expect(kind protocol.Kind, id string) *protocol.Envelope {
	p.t.Helper()
	env := p.recv()
	if env.Kind != kind || env.ID != id {
		p.t.Fatalf("expected %s %s, got %s %s", kind, id, env.Kind, env.ID)
	}
	return env
}

// expectSilence fails if anything arrives within d.
func (p *rawPeer) expectSilence(d time.Duration) {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(d))
	env, _, err := p.dec.Decode()
	if err == nil {
		p.t.Fatalf("expected silence, got %s %s", env.Kind, env.ID)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		p.t.Fatalf("expected a read timeout, got %v", err)
	}
}

// stepClock returns scripted timestamps, repeating the last one.
type stepClock struct {
	mu     sync.Mutex
	values []int64
	next   int
}

func newStepClock(values ...int64) *stepClock {
	return &stepClock{values: values}
}

func (c *stepClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.values[min(c.next, len(c.values)-1)]
	c.next++
	return v
}

// sequentialIDs returns an id generator yielding prefix-0, prefix-1, ...
func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := prefix + "-" + strconv.Itoa(n)
		n++
		return id
	}
}

// nextRecord waits for the responder's next record.
func nextRecord(t *testing.T, r *Responder) Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("no record: %v", err)
	}
	return rec
}

// waitErr waits for a loop's exit error.
func waitErr(t *testing.T, ch <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("%s did not exit", what)
		return nil
	}
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
