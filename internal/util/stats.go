package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/owd/internal/latency"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide link/exchange counter.
var Stats = &stats{}

type stats struct {
	OpenedLinks atomic.Int64 // cumulative count of links since process start
	ClosedLinks atomic.Int64 // cumulative count of closed links since process start
	BytesSent   atomic.Int64 // cumulative bytes written to links
	BytesRecv   atomic.Int64 // cumulative bytes read from links
	Sent        atomic.Int64 // PAYLOAD envelopes written
	Completed   atomic.Int64 // exchanges that produced a latency estimate
	Rejected    atomic.Int64 // ACK2 envelopes with an unknown id
	TimedOut    atomic.Int64 // pending entries evicted before their ack arrived
}

func (s *stats) AddLink()      { s.OpenedLinks.Add(1) }
func (s *stats) RemoveLink()   { s.ClosedLinks.Add(1) }
func (s *stats) AddSent(n int) { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int) { s.BytesRecv.Add(int64(n)) }
func (s *stats) AddPayload()   { s.Sent.Add(1) }
func (s *stats) AddCompleted() { s.Completed.Add(1) }
func (s *stats) AddRejected()  { s.Rejected.Add(1) }
func (s *stats) AddTimedOut()  { s.TimedOut.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs link statistics every
// interval, followed by the latency summary of window when it is non-nil.
// It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration, window *latency.Window) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevSent, prevRecv, prevOpened, prevClosed, prevDone int64
		for {
			select {
			case <-ticker.C:
				opened := Stats.OpenedLinks.Load()
				closed := Stats.ClosedLinks.Load()
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				done := Stats.Completed.Load()

				outS := float64(sent-prevSent) / secs
				inS := float64(recv-prevRecv) / secs
				upC := opened - prevOpened
				downC := closed - prevClosed

				if upC > 0 || downC > 0 || inS > 10 || outS > 10 || done > prevDone {
					pterm.DefaultLogger.Info(formatStats(inS, outS, upC, downC))
					if window != nil {
						pterm.DefaultLogger.Info(formatExchanges(window.Summary()))
					}
				}

				prevSent = sent
				prevRecv = recv
				prevOpened = opened
				prevClosed = closed
				prevDone = done

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted traffic line for display in the logger.
func formatStats(inS, outS float64, upC, downC int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Links: %2d↑ %2d↓",
		formatBytes(inS),
		formatBytes(outS),
		upC,
		downC,
	)
}

// formatExchanges returns the exchange counters and the latency summary.
func formatExchanges(s latency.Summary) string {
	return fmt.Sprintf("Sent: %d | Done: %d | Rejected: %d | Timed out: %d | %s",
		Stats.Sent.Load(),
		Stats.Completed.Load(),
		Stats.Rejected.Load(),
		Stats.TimedOut.Load(),
		s,
	)
}
