package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/owd/internal/util"
)

// WSPath is the HTTP path the WebSocket transport is served on.
const WSPath = "/owd"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsStream adapts a WebSocket connection to a byte stream. Each Write goes
// out as one text message; Read concatenates incoming messages.
type wsStream struct {
	conn *websocket.Conn
	r    io.Reader // current message, nil between messages

	wmu sync.Mutex
}

func newWSStream(conn *websocket.Conn) *wsStream {
	return &wsStream{conn: conn}
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				return 0, wsReadErr(err)
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame (best-effort) and closes the connection.
func (s *wsStream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *wsStream) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *wsStream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// wsReadErr maps a peer-initiated close to io.EOF so the framing layer sees
// an ordinary end of stream.
func wsReadErr(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	) {
		return io.EOF
	}
	return err
}

// DialWS connects to the WebSocket transport served at addr (host:port).
func DialWS(ctx context.Context, addr string) (Stream, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: WSPath}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u.String(), err)
	}
	s := newWSStream(conn)
	util.LogInfo("[%08x] connected to %s", util.LinkID(s.LocalAddr().String(), s.RemoteAddr().String()), u.String())
	return s, nil
}

// ServeWS upgrades requests on WSPath and runs h for each WebSocket on the
// request's goroutine. It blocks until ctx is cancelled.
func ServeWS(ctx context.Context, l net.Listener, h Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc(WSPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			util.LogWarning("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		s := newWSStream(conn)
		util.LogInfo("[%08x] new link from %s", util.LinkID(s.LocalAddr().String(), s.RemoteAddr().String()), r.RemoteAddr)
		h(ctx, s)
	})

	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	util.LogInfo("serving WebSocket on ws://%s%s", l.Addr(), WSPath)
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}
