// Package config holds the CLI configuration types.
package config

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Role represents the side of the exchange this process plays.
type Role string

const (
	RoleOriginator Role = "originator"
	RoleResponder  Role = "responder"
)

// TransportKind selects the stream carrying the envelopes.
type TransportKind string

const (
	TransportTCP    TransportKind = "tcp"
	TransportWS     TransportKind = "ws"
	TransportWebRTC TransportKind = "webrtc"
)

// Defaults.
const (
	DefaultOriginatorAddr = "localhost:8888"
	DefaultResponderAddr  = "0.0.0.0:8888"
	DefaultCount          = 1000
	DefaultInterval       = 5 * time.Millisecond
	DefaultTTL            = 30 * time.Second
	DefaultReport         = 10 * time.Second
	DefaultFlushTimeout   = 5 * time.Second
)

// Config stores all parameters gathered from flags or interactive prompts.
type Config struct {
	Role      Role
	Transport TransportKind

	// Addr is the host:port to dial (originator) or listen on (responder).
	// For the webrtc transport it is the signaling server's address.
	// An empty originator Addr triggers mDNS discovery.
	Addr string

	Count        int           // Originator: number of sample payloads to send
	Interval     time.Duration // Originator: pause between payloads
	FlushTimeout time.Duration // Originator: wait for outstanding exchanges before closing

	TTL    time.Duration // pending entries older than this are evicted (0 disables)
	Report time.Duration // statistics reporter period (0 disables)

	PIN       string // webrtc signaling PIN (responder generates one when empty)
	Advertise bool   // Responder: advertise over mDNS
	Debug     bool
}

// Default returns the configuration for role with every default applied.
func Default(role Role) Config {
	addr := DefaultOriginatorAddr
	if role == RoleResponder {
		addr = DefaultResponderAddr
	}
	return Config{
		Role:         role,
		Transport:    TransportTCP,
		Addr:         addr,
		Count:        DefaultCount,
		Interval:     DefaultInterval,
		FlushTimeout: DefaultFlushTimeout,
		TTL:          DefaultTTL,
		Report:       DefaultReport,
	}
}

// SweepInterval is how often pending entries are checked against the TTL.
func (c Config) SweepInterval() time.Duration {
	if c.TTL <= 0 {
		return 0
	}
	return max(c.TTL/4, 10*time.Millisecond)
}

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Role {
	case RoleOriginator, RoleResponder:
	default:
		return fmt.Errorf("%w: role must be %q or %q, got %q", ErrInvalid, RoleOriginator, RoleResponder, c.Role)
	}

	switch c.Transport {
	case TransportTCP, TransportWS, TransportWebRTC:
	default:
		return fmt.Errorf("%w: transport must be tcp, ws or webrtc, got %q", ErrInvalid, c.Transport)
	}

	if c.Addr != "" || c.Role == RoleResponder {
		if _, _, err := net.SplitHostPort(c.Addr); err != nil {
			return fmt.Errorf("%w: address %q: %v", ErrInvalid, c.Addr, err)
		}
	}

	if c.Role == RoleOriginator {
		if c.Count < 0 {
			return fmt.Errorf("%w: count must not be negative", ErrInvalid)
		}
		if c.Interval < 0 || c.FlushTimeout < 0 {
			return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
		}
	}

	if c.TTL < 0 || c.Report < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}
	return nil
}
