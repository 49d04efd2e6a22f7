package latency

import (
	"fmt"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// DefaultWindowSize is the number of recent estimates kept for summaries.
const DefaultWindowSize = 1024

// Window keeps the most recent latency estimates in a ring buffer.
type Window struct {
	mu      sync.Mutex
	samples []float64 // nanoseconds
	next    int
	full    bool
	total   uint64
}

// NewWindow creates a window holding up to size estimates.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{samples: make([]float64, size)}
}

// Add records an estimate, overwriting the oldest one once the window is full.
func (w *Window) Add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.next] = float64(d)
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
	w.total++
}

// Summary describes the estimates currently in a window.
type Summary struct {
	Count  int    // estimates in the window
	Total  uint64 // estimates ever added
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	Median time.Duration
	P95    time.Duration
	Jitter time.Duration // population standard deviation
}

// Summary computes statistics over the current window contents.
func (w *Window) Summary() Summary {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	data := make(stats.Float64Data, n)
	copy(data, w.samples[:n])
	total := w.total
	w.mu.Unlock()

	s := Summary{Count: n, Total: total}
	if n == 0 {
		return s
	}

	// Errors are only returned for empty input, ruled out above.
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	p95, _ := stats.Percentile(data, 95)
	sd, _ := stats.StandardDeviation(data)

	s.Min = time.Duration(lo)
	s.Max = time.Duration(hi)
	s.Mean = time.Duration(mean)
	s.Median = time.Duration(median)
	s.P95 = time.Duration(p95)
	s.Jitter = time.Duration(sd)
	return s
}

func (s Summary) String() string {
	if s.Count == 0 {
		return "no samples"
	}
	return fmt.Sprintf("n=%d min=%v avg=%v p50=%v p95=%v max=%v jitter=%v",
		s.Count,
		s.Min.Round(time.Microsecond),
		s.Mean.Round(time.Microsecond),
		s.Median.Round(time.Microsecond),
		s.P95.Round(time.Microsecond),
		s.Max.Round(time.Microsecond),
		s.Jitter.Round(time.Microsecond),
	)
}
