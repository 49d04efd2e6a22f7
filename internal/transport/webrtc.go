package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/owd/internal/util"
)

const (
	highWaterMark = 256 * 1024 // pause writing when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume writing when bufferedAmount drops below this
)

// ErrPeerClosed is returned by Write once the DataChannel is gone.
var ErrPeerClosed = errors.New("peer connection closed")

// Peer wraps a single PeerConnection + DataChannel pair and exposes the
// DataChannel as a byte stream.
//
// Its lifecycle is governed by the DataChannel state and the context passed
// at construction time. The PeerConnection state is recorded and a failed or
// closed connection also shuts the Peer down.
type Peer struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	openSignal  chan struct{}
	drainSignal chan struct{}

	// Inbound messages are copied into the pipe in arrival order.
	pr *io.PipeReader
	pw *io.PipeWriter

	wmu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
}

// NewPeer creates a Peer backed by a new PeerConnection and a pre-negotiated
// DataChannel. The caller performs signaling via the exposed methods
// (CreateOffer / CreateAnswer / …) and waits on Ready before using the stream.
func NewPeer(ctx context.Context) (*Peer, error) {
	pc, err := newPeerConnection()
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	pCtx, pCancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	p := &Peer{
		pc:          pc,
		dc:          dc,
		openSignal:  make(chan struct{}),
		drainSignal: make(chan struct{}, 1),
		pr:          pr,
		pw:          pw,
		ctx:         pCtx,
		cancel:      pCancel,
		pcState:     webrtc.PeerConnectionStateNew,
	}

	// DC open gate.
	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(p.openSignal) })
	})

	// DC close → end of stream.
	dc.OnClose(func() {
		util.LogDebug("DataChannel closed")
		pCancel()
		pw.Close()
	})

	// Blocks the SCTP read loop until the reader catches up.
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if _, err := pw.Write(msg.Data); err != nil {
			util.LogDebug("dropping DataChannel message: %v", err)
		}
	})

	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case p.drainSignal <- struct{}{}:
		default:
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		p.mu.Lock()
		p.pcState = state
		p.mu.Unlock()

		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			pCancel()
			pw.Close()
		}
	})

	// Parent cancellation also ends the stream.
	go func() {
		<-pCtx.Done()
		pw.CloseWithError(io.EOF)
	}()

	return p, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed when the DataChannel is open.
func (p *Peer) Ready() <-chan struct{} {
	return p.openSignal
}

// Done returns a channel that is closed when the Peer is shut down.
func (p *Peer) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection.
func (p *Peer) Close() error {
	p.cancel()
	p.pr.Close()
	return errors.Join(p.dc.Close(), p.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (p *Peer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (p *Peer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (p *Peer) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	p.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

// Read returns inbound DataChannel bytes in order.
func (p *Peer) Read(b []byte) (int, error) {
	return p.pr.Read(b)
}

// Write sends b as one DataChannel message. It waits for the channel to open
// and pauses while the send buffer is above the high water mark.
func (p *Peer) Write(b []byte) (int, error) {
	select {
	case <-p.openSignal:
	case <-p.ctx.Done():
		return 0, ErrPeerClosed
	}

	p.wmu.Lock()
	defer p.wmu.Unlock()

	for p.dc.BufferedAmount() > uint64(highWaterMark) {
		select {
		case <-p.drainSignal:
		case <-p.ctx.Done():
			return 0, ErrPeerClosed
		}
	}

	// The caller may reuse b once Write returns.
	data := append([]byte(nil), b...)
	if err := p.dc.Send(data); err != nil {
		return 0, fmt.Errorf("DataChannel send: %w", err)
	}
	return len(b), nil
}
