package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/pterm/pterm"

	"github.com/1ureka/owd/internal/config"
	"github.com/1ureka/owd/internal/discovery"
	"github.com/1ureka/owd/internal/latency"
	"github.com/1ureka/owd/internal/session"
	"github.com/1ureka/owd/internal/signaling"
	"github.com/1ureka/owd/internal/transport"
	"github.com/1ureka/owd/internal/util"
)

// RecordFunc receives every completed record.
type RecordFunc func(session.Record)

// RunResponder listens on cfg.Addr and serves until ctx is cancelled.
func RunResponder(ctx context.Context, cfg config.Config) error {
	l, err := transport.ListenTCP(cfg.Addr)
	if err != nil {
		return err
	}
	return ServeResponder(ctx, cfg, l, nil)
}

// ServeResponder orchestrates the responder lifecycle on l:
//  1. Create the shared responder state and its eviction sweep
//  2. Start the consumer, which feeds the latency window
//  3. Optionally advertise over mDNS
//  4. Serve every link over cfg.Transport until ctx is cancelled
//
// Records go to onRecord when it is non-nil and are logged otherwise.
func ServeResponder(ctx context.Context, cfg config.Config, l net.Listener, onRecord RecordFunc) error {
	defer l.Close()

	r := session.NewResponder(session.WithEviction(cfg.TTL, cfg.SweepInterval()))
	go r.Run(ctx)

	window := latency.NewWindow(latency.DefaultWindowSize)
	util.StartStatsReporter(ctx, cfg.Report, window)

	if onRecord == nil {
		onRecord = logRecord
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consume(ctx, r, window, onRecord)
	}()
	defer func() {
		r.Close()
		wg.Wait()
		if s := window.Summary(); s.Count > 0 {
			util.LogInfo("final: %s", s)
		}
	}()

	if cfg.Advertise {
		adv, err := advertise(l, cfg.Transport)
		if err != nil {
			util.LogWarning("mDNS advertisement disabled: %v", err)
		} else {
			defer adv.Shutdown()
		}
	}

	handler := func(ctx context.Context, s transport.Stream) {
		if err := r.Serve(ctx, s); err != nil {
			util.LogWarning("link dropped: %v", err)
		}
	}

	util.LogSuccess("responder ready on %s (%s)", l.Addr(), cfg.Transport)

	switch cfg.Transport {
	case config.TransportTCP:
		return transport.Serve(ctx, l, handler)
	case config.TransportWS:
		return transport.ServeWS(ctx, l, handler)
	case config.TransportWebRTC:
		pin := cfg.PIN
		if pin == "" {
			pin = signaling.GeneratePIN(4)
		}
		printSignalingBox(l.Addr(), pin)
		return signaling.NewServer(l, pin).Serve(ctx, handler)
	default:
		return fmt.Errorf("%w: unknown transport %q", config.ErrInvalid, cfg.Transport)
	}
}

// consume drains completed records until the responder is closed.
func consume(ctx context.Context, r *session.Responder, window *latency.Window, onRecord RecordFunc) {
	for {
		rec, err := r.Next(ctx)
		if err != nil {
			return
		}
		window.Add(rec.Latency)
		onRecord(rec)
	}
}

// logRecord is the default consumer: it prints the latency of every payload.
func logRecord(rec session.Record) {
	var obj PerceivedObject
	if err := rec.Decode(&obj); err == nil && obj.ObjectID != 0 {
		util.LogInfo("object %d #%d %s", obj.ObjectID, obj.Sequence, rec.Sample)
		return
	}
	util.LogInfo("%s %s (%d bytes)", rec.ID, rec.Sample, len(rec.Payload))
}

func advertise(l net.Listener, kind config.TransportKind) (*discovery.Advertiser, error) {
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot advertise non-TCP address %s", l.Addr())
	}

	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "owd"
	}
	return discovery.Advertise(name, tcpAddr.Port, string(kind))
}

func printSignalingBox(addr net.Addr, pin string) {
	body := fmt.Sprintf("Address : %s\nPIN     : %s", addr, pin)
	pterm.DefaultBox.WithTitle("WebRTC Signaling Server").Println(body)
	pterm.Println()
}
