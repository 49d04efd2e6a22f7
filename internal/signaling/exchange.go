package signaling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/owd/internal/transport"
	"github.com/1ureka/owd/internal/util"
)

// HandshakeTimeout bounds the SDP/ICE exchange of one peer.
const HandshakeTimeout = 30 * time.Second

var errHandshakeTimeout = errors.New("handshake timed out")

// establish performs the SDP/ICE exchange over conn and blocks until the
// DataChannel opens. The offering side sends the Offer; the other side
// answers from inside the receiver loop. The returned Peer outlives conn and
// stays bound to ctx.
func establish(ctx context.Context, conn *websocket.Conn, offer bool) (*transport.Peer, error) {
	peer, err := transport.NewPeer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer: %w", err)
	}

	s := &sender{peer: peer, conn: conn}
	r := &receiver{peer: peer, conn: conn, sender: s}
	s.trickle()

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watch() // exits when conn is closed by the caller
	}()

	if offer {
		if err := s.sendOffer(); err != nil {
			peer.Close()
			return nil, fmt.Errorf("failed to send offer: %w", err)
		}
	}

	timer := time.NewTimer(HandshakeTimeout)
	defer timer.Stop()

	select {
	case <-peer.Ready():
		util.LogDebug("DataChannel established, closing signaling socket")
		return peer, nil

	case err := <-errCh:
		peer.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-timer.C:
		peer.Close()
		return nil, errHandshakeTimeout

	case <-ctx.Done():
		peer.Close()
		return nil, ctx.Err()
	}
}
