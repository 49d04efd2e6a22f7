package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

// echoLines writes every line it reads back to the stream.
func echoLines(ctx context.Context, s Stream) {
	defer s.Close()
	r := bufio.NewReader(s)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return
		}
		if _, err := s.Write(line); err != nil {
			return
		}
	}
}

func roundTrip(t *testing.T, s Stream, lines ...string) {
	t.Helper()
	r := bufio.NewReader(s)
	for _, line := range lines {
		if _, err := s.Write([]byte(line)); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read echo of %q: %v", line, err)
		}
		if got != line {
			t.Fatalf("echo = %q, want %q", got, line)
		}
	}
}

func TestTCPServeAndDial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	served := make(chan error, 1)
	go func() { served <- Serve(ctx, l, echoLines) }()

	conn, err := DialTCP(ctx, l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	roundTrip(t, conn, "{\"id\":\"a\",\"type\":\"ack\"}\n", "second\n")

	// Serve waits for its handlers, so the link has to end first.
	conn.Close()
	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestDialTCPRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	if _, err := DialTCP(context.Background(), addr); err == nil {
		t.Fatal("expected error dialing a closed port")
	}
}

func TestWSStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go ServeWS(ctx, l, echoLines)

	s, err := DialWS(ctx, l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	roundTrip(t, s, "one\n", "two\n", "three\n")

	// A line split across two messages is reassembled by the reader.
	if _, err := s.Write([]byte("spl")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write([]byte("it\n")); err != nil {
		t.Fatal(err)
	}
	got, err := bufio.NewReader(s).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if got != "split\n" {
		t.Fatalf("got %q, want %q", got, "split\n")
	}
}

func TestWSPeerCloseIsEOF(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go ServeWS(ctx, l, func(ctx context.Context, s Stream) { s.Close() })

	s, err := DialWS(ctx, l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	buf := make([]byte, 16)
	if _, err := s.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("Read after peer close = %v, want io.EOF", err)
	}
}
