// Package transport provides the ordered, reliable byte streams the
// measurement exchange runs over: plain TCP, WebSocket, and a WebRTC
// DataChannel. Every transport hands the session layer an io.ReadWriteCloser.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/1ureka/owd/internal/util"
)

// Stream is one bidirectional link between two peers.
type Stream = io.ReadWriteCloser

// Handler serves one accepted stream. It owns the stream and must close it.
type Handler func(ctx context.Context, s Stream)

// DialTCP connects to addr.
func DialTCP(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	util.LogInfo("[%08x] connected to %s", util.LinkIDFromConn(conn), addr)
	return conn, nil
}

// ListenTCP opens the listening socket used by Serve, ServeWS and the
// signaling server.
func ListenTCP(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return l, nil
}

// Serve accepts TCP connections on l and runs h for each one in its own
// goroutine. It blocks until ctx is cancelled, then waits for the handlers
// to return.
func Serve(ctx context.Context, l net.Listener, h Handler) error {
	// Close the listener when context is done so Accept() returns an error.
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	util.LogInfo("serving on %s", l.Addr())

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil // normal shutdown
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept error: %w", err)
		}

		util.LogInfo("[%08x] new link from %s", util.LinkIDFromConn(conn), conn.RemoteAddr())

		wg.Add(1)
		go func() {
			defer wg.Done()
			h(ctx, conn)
		}()
	}
}
