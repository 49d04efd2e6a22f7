// Package signaling runs the WebSocket exchange of SDP offers, answers and
// ICE candidates that sets up a WebRTC DataChannel between two peers.
// Callers receive a ready-to-use transport.Peer; the WebSocket is closed
// once the channel opens.
package signaling

// messageType identifies the kind of signaling message.
type messageType string

const (
	msgTypeOffer     messageType = "offer"
	msgTypeAnswer    messageType = "answer"
	msgTypeCandidate messageType = "candidate"
)

// message is the JSON structure exchanged over the WebSocket during signaling.
type message struct {
	Type      messageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}

// Path is the HTTP path of the signaling WebSocket.
const Path = "/ws"
