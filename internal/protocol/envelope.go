// Package protocol defines the envelope exchanged between originator and
// responder and its newline-delimited JSON framing.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies the step of an exchange an envelope belongs to.
type Kind uint8

const (
	KindPayload Kind = iota + 1 // originator → responder, carries the payload
	KindAck1                    // responder → originator, no data
	KindAck2                    // originator → responder, carries the round trip
)

func (k Kind) String() string {
	switch k {
	case KindPayload:
		return "PAYLOAD"
	case KindAck1:
		return "ACK1"
	case KindAck2:
		return "ACK2"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Wire values of the "type" field. ACK1 and ACK2 share the "ack" type and are
// told apart by the presence of the round-trip field.
const (
	wireTypeMessage = "message"
	wireTypeAck     = "ack"
)

// Envelope is one framed protocol message.
type Envelope struct {
	ID        string
	Kind      Kind
	Payload   json.RawMessage // KindPayload only
	RoundTrip int64           // KindAck2 only, nanoseconds on the originator's clock
}

// NewID returns a fresh exchange identifier.
func NewID() string {
	return uuid.NewString()
}

// NewPayload builds a PAYLOAD envelope.
func NewPayload(id string, payload json.RawMessage) *Envelope {
	return &Envelope{ID: id, Kind: KindPayload, Payload: payload}
}

// NewAck1 builds the first acknowledgment for id.
func NewAck1(id string) *Envelope {
	return &Envelope{ID: id, Kind: KindAck1}
}

// NewAck2 builds the second acknowledgment for id carrying the measured round
// trip in nanoseconds.
func NewAck2(id string, roundTrip int64) *Envelope {
	return &Envelope{ID: id, Kind: KindAck2, RoundTrip: roundTrip}
}

// wireEnvelope is the JSON shape on the stream.
type wireEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RoundTrip *int64          `json:"send_and_ack_time_ns,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{ID: e.ID}

	switch e.Kind {
	case KindPayload:
		w.Type = wireTypeMessage
		w.Payload = e.Payload
		if len(w.Payload) == 0 {
			w.Payload = json.RawMessage("null")
		}
	case KindAck1:
		w.Type = wireTypeAck
	case KindAck2:
		w.Type = wireTypeAck
		rt := e.RoundTrip
		w.RoundTrip = &rt
	default:
		return nil, fmt.Errorf("cannot marshal envelope %s: unknown kind %d", e.ID, e.Kind)
	}

	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("envelope has no id")
	}

	*e = Envelope{ID: w.ID}

	switch w.Type {
	case wireTypeMessage:
		e.Kind = KindPayload
		e.Payload = w.Payload
	case wireTypeAck:
		if w.RoundTrip != nil {
			e.Kind = KindAck2
			e.RoundTrip = *w.RoundTrip
		} else {
			e.Kind = KindAck1
		}
	default:
		return fmt.Errorf("unknown envelope type %q", w.Type)
	}
	return nil
}
