package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// TestEncodeWireFormat pins the exact line produced for each envelope kind.
func TestEncodeWireFormat(t *testing.T) {
	testCases := []struct {
		name string
		env  *Envelope
		want string
	}{
		{
			name: "payload",
			env:  NewPayload("a1", json.RawMessage(`{"objectId":82}`)),
			want: `{"id":"a1","type":"message","payload":{"objectId":82}}` + "\n",
		},
		{
			name: "payload without data",
			env:  NewPayload("a2", nil),
			want: `{"id":"a2","type":"message","payload":null}` + "\n",
		},
		{
			name: "ack1",
			env:  NewAck1("b1"),
			want: `{"id":"b1","type":"ack"}` + "\n",
		},
		{
			name: "ack2",
			env:  NewAck2("c1", 1_000_000),
			want: `{"id":"c1","type":"ack","send_and_ack_time_ns":1000000}` + "\n",
		},
		{
			name: "ack2 with zero round trip keeps the field",
			env:  NewAck2("c2", 0),
			want: `{"id":"c2","type":"ack","send_and_ack_time_ns":0}` + "\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.env)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if string(got) != tc.want {
				t.Errorf("wire mismatch:\n got: %s\nwant: %s", got, tc.want)
			}
		})
	}
}

// TestDecodeKinds verifies that lines written by either peer are classified
// into the right kind, including the ", " / ": " spacing other JSON encoders emit.
func TestDecodeKinds(t *testing.T) {
	testCases := []struct {
		name      string
		line      string
		wantKind  Kind
		wantRT    int64
		wantBytes string
	}{
		{
			name:      "message",
			line:      `{"id": "x", "type": "message", "payload": {"message": "Hello 0"}}`,
			wantKind:  KindPayload,
			wantBytes: `{"message": "Hello 0"}`,
		},
		{
			name:     "first ack",
			line:     `{"id": "x", "type": "ack"}`,
			wantKind: KindAck1,
		},
		{
			name:     "second ack",
			line:     `{"id": "x", "type": "ack", "send_and_ack_time_ns": 523114}`,
			wantKind: KindAck2,
			wantRT:   523114,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Decode([]byte(tc.line + "\n"))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if env.ID != "x" {
				t.Errorf("ID mismatch: got %q, want %q", env.ID, "x")
			}
			if env.Kind != tc.wantKind {
				t.Errorf("Kind mismatch: got %s, want %s", env.Kind, tc.wantKind)
			}
			if env.RoundTrip != tc.wantRT {
				t.Errorf("RoundTrip mismatch: got %d, want %d", env.RoundTrip, tc.wantRT)
			}
			if string(env.Payload) != tc.wantBytes {
				t.Errorf("Payload mismatch: got %s, want %s", env.Payload, tc.wantBytes)
			}
		})
	}
}

// TestDecodeMalformed verifies that undecodable lines wrap ErrMalformed.
func TestDecodeMalformed(t *testing.T) {
	testCases := []struct {
		name string
		line string
	}{
		{"not json", "hello"},
		{"truncated", `{"id": "x", "type": `},
		{"missing id", `{"type": "ack"}`},
		{"unknown type", `{"id": "x", "type": "ping"}`},
		{"round trip not an integer", `{"id": "x", "type": "ack", "send_and_ack_time_ns": "soon"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.line))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

// TestDecoderStream reads several envelopes off one stream, skipping blank
// lines, and ends with ErrClosed.
func TestDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	sent := []*Envelope{
		NewPayload("p1", json.RawMessage(`[1,2,3]`)),
		NewAck1("p1"),
		NewAck2("p1", 42),
	}
	for _, env := range sent {
		if _, err := enc.Encode(env); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		buf.WriteString("\n")
	}

	dec := NewDecoder(&buf)
	for i, want := range sent {
		got, n, err := dec.Decode()
		if err != nil {
			t.Fatalf("envelope %d: Decode failed: %v", i, err)
		}
		if n == 0 {
			t.Errorf("envelope %d: expected a non-zero byte count", i)
		}
		if got.ID != want.ID || got.Kind != want.Kind || got.RoundTrip != want.RoundTrip {
			t.Errorf("envelope %d mismatch: got %+v, want %+v", i, got, want)
		}
	}

	if _, _, err := dec.Decode(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed at end of stream, got %v", err)
	}
}

// TestDecoderPartialLineIsClosed treats a frame cut by the close as closure.
func TestDecoderPartialLineIsClosed(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"id": "x", "ty`))
	if _, _, err := dec.Decode(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// TestDecoderOversizedLine rejects a line longer than MaxLineSize.
func TestDecoderOversizedLine(t *testing.T) {
	line := strings.Repeat("a", MaxLineSize+1) + "\n"
	dec := NewDecoder(strings.NewReader(line))
	if _, _, err := dec.Decode(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

// TestEncoderRejectsOversizedEnvelope keeps oversized frames off the stream.
func TestEncoderRejectsOversizedEnvelope(t *testing.T) {
	var buf bytes.Buffer
	payload := json.RawMessage(`"` + strings.Repeat("b", MaxLineSize) + `"`)
	if _, err := NewEncoder(&buf).Encode(NewPayload("big", payload)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written, got %d bytes", buf.Len())
	}
}

func TestCheckSize(t *testing.T) {
	// {"id":"x","type":"message","payload":"..."}\n
	overhead := len(`{"id":"x","type":"message","payload":""}`) + 1
	fits := json.RawMessage(`"` + strings.Repeat("c", MaxLineSize-overhead) + `"`)
	if err := CheckSize(NewPayload("x", fits)); err != nil {
		t.Fatalf("envelope of exactly MaxLineSize rejected: %v", err)
	}

	over := json.RawMessage(`"` + strings.Repeat("c", MaxLineSize-overhead+1) + `"`)
	if err := CheckSize(NewPayload("x", over)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
