// Package latency turns the two single-clock spans of an exchange into a
// one-way delay estimate and summarizes recent estimates.
package latency

import (
	"fmt"
	"time"
)

// Estimate returns the one-way latency approximation
//
//	roundTrip − serverSpan/2
//
// roundTrip is measured on the originator's clock (PAYLOAD sent → ACK1
// received) and serverSpan on the responder's clock (PAYLOAD received → ACK2
// received). No value from one clock is ever compared with the other. The
// result assumes a symmetric, stable link; it can go negative under jitter.
// Odd spans are halved with truncation toward zero.
func Estimate(roundTrip, serverSpan time.Duration) time.Duration {
	return roundTrip - serverSpan/2
}

// Sample is one completed measurement.
type Sample struct {
	RoundTrip  time.Duration
	ServerSpan time.Duration
	Latency    time.Duration
}

// NewSample computes the estimate for the given spans.
func NewSample(roundTrip, serverSpan time.Duration) Sample {
	return Sample{
		RoundTrip:  roundTrip,
		ServerSpan: serverSpan,
		Latency:    Estimate(roundTrip, serverSpan),
	}
}

func (s Sample) String() string {
	return fmt.Sprintf("latency=%v (rtt=%v span=%v)", s.Latency, s.RoundTrip, s.ServerSpan)
}
