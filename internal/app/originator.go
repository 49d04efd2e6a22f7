// Package app contains the top-level orchestration for the originator and
// responder roles.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/1ureka/owd/internal/config"
	"github.com/1ureka/owd/internal/discovery"
	"github.com/1ureka/owd/internal/session"
	"github.com/1ureka/owd/internal/signaling"
	"github.com/1ureka/owd/internal/transport"
	"github.com/1ureka/owd/internal/util"
)

// discoveryTimeout bounds the mDNS browse when no address is configured.
const discoveryTimeout = 10 * time.Second

// RunOriginator orchestrates the full originator lifecycle:
//  1. Resolve the responder address (mDNS when cfg.Addr is empty)
//  2. Open the stream for cfg.Transport
//  3. Send cfg.Count sample payloads, one every cfg.Interval
//  4. Wait up to cfg.FlushTimeout for outstanding exchanges
//  5. Close the link
func RunOriginator(ctx context.Context, cfg config.Config) error {
	addr, kind, err := resolve(ctx, cfg)
	if err != nil {
		return err
	}

	stream, err := dial(ctx, kind, addr, cfg.PIN)
	if err != nil {
		return err
	}

	o := session.NewOriginator(ctx, stream, session.WithEviction(cfg.TTL, cfg.SweepInterval()))
	defer o.Close()

	util.StartStatsReporter(ctx, cfg.Report, nil)
	util.LogSuccess("connected to %s over %s, sending %d payloads", addr, kind, cfg.Count)

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run() }()

	if err := produce(ctx, o, cfg); err != nil {
		util.LogWarning("producer stopped early: %v", err)
	}
	o.CloseSend()

	flushCtx, cancel := context.WithTimeout(ctx, cfg.FlushTimeout)
	err = o.Flush(flushCtx)
	cancel()
	switch {
	case err == nil:
		util.LogSuccess("all exchanges acknowledged (%d sent)", util.Stats.Sent.Load())
	case errors.Is(err, context.DeadlineExceeded):
		util.LogWarning("closing with %d exchanges still pending", o.Pending())
	default:
		util.LogWarning("link ended before all exchanges completed: %v", err)
	}

	o.Close()
	return <-runErr
}

// produce enqueues the demo payloads.
func produce(ctx context.Context, o *session.Originator, cfg config.Config) error {
	var tick <-chan time.Time
	if cfg.Interval > 0 {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := range cfg.Count {
		if err := o.Send(SampleObject(i)); err != nil {
			return err
		}
		if tick == nil || i == cfg.Count-1 {
			continue
		}

		select {
		case <-tick:
		case <-o.Done():
			return errors.New("link closed")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// resolve returns the address and transport to dial. An empty address is
// looked up over mDNS; the advertised transport then takes precedence.
func resolve(ctx context.Context, cfg config.Config) (string, config.TransportKind, error) {
	if cfg.Addr != "" {
		return cfg.Addr, cfg.Transport, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	svc, err := discovery.Lookup(lookupCtx)
	if err != nil {
		return "", "", fmt.Errorf("failed to discover responder: %w", err)
	}

	kind := cfg.Transport
	if svc.Transport != "" {
		kind = config.TransportKind(svc.Transport)
	}
	return svc.Addr(), kind, nil
}

// dial opens a stream to addr over the given transport.
func dial(ctx context.Context, kind config.TransportKind, addr, pin string) (transport.Stream, error) {
	switch kind {
	case config.TransportTCP:
		return transport.DialTCP(ctx, addr)
	case config.TransportWS:
		return transport.DialWS(ctx, addr)
	case config.TransportWebRTC:
		return signaling.Dial(ctx, addr, pin)
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", config.ErrInvalid, kind)
	}
}
