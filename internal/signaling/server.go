package signaling

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/1ureka/owd/internal/transport"
	"github.com/1ureka/owd/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the responder-side signaling endpoint. Every authenticated
// client gets its own Peer.
type Server struct {
	pin      string
	listener net.Listener
}

// Listen opens the signaling listener on addr. An empty pin disables
// authentication.
func Listen(addr, pin string) (*Server, error) {
	l, err := transport.ListenTCP(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start signaling server: %w", err)
	}
	return NewServer(l, pin), nil
}

// NewServer serves signaling on an existing listener.
func NewServer(l net.Listener, pin string) *Server {
	return &Server{pin: pin, listener: l}
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts signaling clients and hands every established Peer to h on
// the client's request goroutine. It blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, h transport.Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		s.handleWS(ctx, w, r, h)
	})

	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	util.LogInfo("signaling on ws://%s%s", s.listener.Addr(), Path)
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("signaling server: %w", err)
	}
	return nil
}

// Close shuts down the listener, preventing new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) authorized(r *http.Request) bool {
	if s.pin == "" {
		return true
	}
	pin := r.URL.Query().Get("pin")
	return subtle.ConstantTimeCompare([]byte(pin), []byte(s.pin)) == 1
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request, h transport.Handler) {
	if !s.authorized(r) {
		util.LogWarning("rejected signaling client %s: invalid PIN", r.RemoteAddr)
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogWarning("signaling upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	util.LogInfo("signaling client %s connected", r.RemoteAddr)
	peer, err := establish(ctx, conn, true)
	conn.Close()
	if err != nil {
		util.LogError("signaling with %s failed: %v", r.RemoteAddr, err)
		return
	}

	util.LogInfo("[%08x] new link from %s (webrtc)", util.LinkID("webrtc", r.RemoteAddr), r.RemoteAddr)
	h(ctx, peer)
}
