package util

import (
	"strings"
	"testing"
	"time"

	"github.com/1ureka/owd/internal/latency"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{5 * 1024 * 1024, " 5.0 MiB"},
	}

	for _, tc := range testCases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%v) = %q, want %q", tc.in, got, tc.want)
		}
		if len(formatBytes(tc.in)) != 8 {
			t.Errorf("formatBytes(%v) is not 8 chars wide", tc.in)
		}
	}
}

func TestFormatStats(t *testing.T) {
	got := formatStats(2048, 0, 1, 0)
	want := "In:  2.0 KiB/s | Out:  0.0   B/s | Links:  1↑  0↓"
	if got != want {
		t.Errorf("formatStats:\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatExchanges(t *testing.T) {
	w := latency.NewWindow(4)
	w.Add(time.Millisecond)
	got := formatExchanges(w.Summary())
	if !strings.Contains(got, "n=1") || !strings.Contains(got, "avg=1ms") {
		t.Errorf("unexpected summary line: %s", got)
	}
}

func TestLinkID(t *testing.T) {
	a := LinkID("127.0.0.1:1", "127.0.0.1:2")
	b := LinkID("127.0.0.1:1", "127.0.0.1:3")
	if a == b {
		t.Error("distinct endpoints should hash differently")
	}
	if a != LinkID("127.0.0.1:1", "127.0.0.1:2") {
		t.Error("LinkID is not deterministic")
	}
}
