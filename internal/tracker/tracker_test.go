package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(ttl time.Duration) (*Tracker[int64], *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tr := New[int64](ttl)
	tr.now = clock.Now
	return tr, clock
}

func TestPutTake(t *testing.T) {
	tr, _ := newTestTracker(0)
	tr.Put("a", 10)

	if v, ok := tr.Get("a"); !ok || v != 10 {
		t.Fatalf("Get: got (%d, %v), want (10, true)", v, ok)
	}
	if v, ok := tr.Take("a"); !ok || v != 10 {
		t.Fatalf("Take: got (%d, %v), want (10, true)", v, ok)
	}
	if _, ok := tr.Take("a"); ok {
		t.Fatal("second Take should report the entry as gone")
	}
	if tr.Len() != 0 {
		t.Errorf("expected empty tracker, got %d entries", tr.Len())
	}
}

// TestIsolation verifies that entries under different ids never perturb
// each other.
func TestIsolation(t *testing.T) {
	tr, _ := newTestTracker(0)
	tr.Put("a", 1)
	tr.Put("b", 2)
	tr.Put("a", 3)
	tr.Delete("missing")

	if v, _ := tr.Get("b"); v != 2 {
		t.Errorf("b perturbed: got %d, want 2", v)
	}
	tr.Take("a")
	if v, ok := tr.Get("b"); !ok || v != 2 {
		t.Errorf("b perturbed by Take(a): got (%d, %v)", v, ok)
	}
}

// TestConcurrentAccess hammers a single tracker from many goroutines; run
// with -race to check the single shared lock.
func TestConcurrentAccess(t *testing.T) {
	tr := New[int](0)
	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				id := fmt.Sprintf("%d-%d", w, i)
				tr.Put(id, i)
				if v, ok := tr.Take(id); !ok || v != i {
					t.Errorf("%s: got (%d, %v), want (%d, true)", id, v, ok, i)
					return
				}
			}
		}()
	}
	wg.Wait()

	if tr.Len() != 0 {
		t.Errorf("expected empty tracker, got %d entries", tr.Len())
	}
}

func TestSweep(t *testing.T) {
	tr, clock := newTestTracker(10 * time.Second)
	tr.Put("old", 1)
	clock.Advance(6 * time.Second)
	tr.Put("young", 2)
	clock.Advance(5 * time.Second)

	expired := tr.Sweep()
	if len(expired) != 1 || expired[0].ID != "old" || expired[0].Value != 1 {
		t.Fatalf("unexpected sweep result: %+v", expired)
	}
	if expired[0].Age != 11*time.Second {
		t.Errorf("Age mismatch: got %v, want 11s", expired[0].Age)
	}
	if _, ok := tr.Get("young"); !ok {
		t.Error("young entry should survive the sweep")
	}

	clock.Advance(5 * time.Second)
	ids := []string{}
	for _, e := range tr.Sweep() {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	if len(ids) != 1 || ids[0] != "young" {
		t.Errorf("second sweep: got %v, want [young]", ids)
	}
}

func TestSweepDisabled(t *testing.T) {
	tr, clock := newTestTracker(0)
	tr.Put("a", 1)
	clock.Advance(24 * time.Hour)

	if expired := tr.Sweep(); len(expired) != 0 {
		t.Fatalf("expected no eviction with ttl=0, got %+v", expired)
	}
}

// TestRunReportsExpired checks that the background sweep reports entries
// with the real clock.
func TestRunReportsExpired(t *testing.T) {
	tr := New[string](20 * time.Millisecond)
	tr.Put("lost", "payload")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Expired[string], 1)
	go tr.Run(ctx, 5*time.Millisecond, func(e Expired[string]) {
		got <- e
	})

	select {
	case e := <-got:
		if e.ID != "lost" || e.Value != "payload" {
			t.Errorf("unexpected expired entry: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("entry was never reported as expired")
	}

	if tr.Len() != 0 {
		t.Errorf("expected empty tracker, got %d entries", tr.Len())
	}
}

func TestClear(t *testing.T) {
	tr, _ := newTestTracker(0)
	tr.Put("a", 1)
	tr.Put("b", 2)
	tr.Clear()
	if tr.Len() != 0 {
		t.Errorf("expected empty tracker, got %d entries", tr.Len())
	}
}
