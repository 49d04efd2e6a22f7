package signaling

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/1ureka/owd/internal/transport"
	"github.com/1ureka/owd/internal/util"
)

// signalingURL builds ws://addr/ws?pin=... for the given host:port.
func signalingURL(addr, pin string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}
	if pin != "" {
		u.RawQuery = url.Values{"pin": {pin}}.Encode()
	}
	return u.String()
}

// Dial connects to the signaling server at addr, performs the exchange as
// the answering side and returns the open Peer.
func Dial(ctx context.Context, addr, pin string) (*transport.Peer, error) {
	wsURL := signalingURL(addr, pin)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signaling server: %w", err)
	}
	defer conn.Close()
	util.LogDebug("signaling connected: %s", addr)

	peer, err := establish(ctx, conn, false)
	if err != nil {
		return nil, err
	}
	util.LogInfo("[%08x] connected to %s (webrtc)", util.LinkID("webrtc", addr), addr)
	return peer, nil
}
