package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// MaxLineSize bounds a single framed envelope, terminator included.
const MaxLineSize = 1 << 20

var (
	// ErrClosed reports that the peer or the network closed the stream.
	// It is terminal for the stream, never transient.
	ErrClosed = errors.New("stream closed")

	// ErrMalformed reports a line that could not be decoded into an Envelope.
	ErrMalformed = errors.New("malformed envelope")

	// ErrTooLarge reports an envelope whose line would exceed MaxLineSize.
	ErrTooLarge = errors.New("envelope too large")
)

// Encode serializes an Envelope into one newline-terminated line.
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// CheckSize reports an error wrapping ErrTooLarge when env does not fit in
// one line.
func CheckSize(env *Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}
	return checkLine(env, data)
}

func checkLine(env *Envelope, data []byte) error {
	if len(data) > MaxLineSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, env.ID, len(data), MaxLineSize)
	}
	return nil
}

// Decode deserializes one line (with or without its terminator).
func Decode(line []byte) (*Envelope, error) {
	line = bytes.TrimRight(line, "\r\n")
	env := &Envelope{}
	if err := json.Unmarshal(line, env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}

// Encoder writes envelopes to a stream, one line per Write call so that
// message-oriented transports carry exactly one envelope per message.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes env and returns the number of bytes put on the stream.
func (e *Encoder) Encode(env *Envelope) (int, error) {
	data, err := Encode(env)
	if err != nil {
		return 0, err
	}
	if err := checkLine(env, data); err != nil {
		return 0, err
	}
	return e.w.Write(data)
}

// Decoder reads envelopes from a stream, one line at a time.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, MaxLineSize)}
}

// Decode reads the next envelope and returns it with the number of bytes
// consumed. Blank lines are skipped. End of stream yields ErrClosed; a line
// that does not decode yields an error wrapping ErrMalformed.
func (d *Decoder) Decode() (*Envelope, int, error) {
	for {
		line, err := d.r.ReadSlice('\n')
		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			return nil, len(line), fmt.Errorf("%w: line exceeds %d bytes", ErrMalformed, MaxLineSize)
		case isClosed(err):
			// A partial line at end of stream is a frame cut by the close.
			return nil, len(line), ErrClosed
		default:
			return nil, len(line), err
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		env, err := Decode(line)
		return env, len(line), err
	}
}

// isClosed reports whether err means the stream is gone rather than broken
// mid-operation.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET)
}
