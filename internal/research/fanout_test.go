package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := f.fail[query]; err != nil {
		return "", err
	}
	return "summary of " + query, nil
}

func TestResearchToleratesPartialFailure(t *testing.T) {
	t.Parallel()
	s := &fakeSearcher{fail: map[string]error{"b": errors.New("upstream 502")}}
	f := NewFanOut(s, time.Second, nil)

	bundle := f.Research(context.Background(), []string{"a", "b", "c"})

	if bundle.Len() != 3 {
		t.Fatalf("Expected 3 findings, got %d", bundle.Len())
	}
	for _, q := range []string{"a", "c"} {
		got, ok := bundle.Get(q)
		if !ok || got.Failed || got.Summary != "summary of "+q {
			t.Errorf("Expected real content for %q, got %+v", q, got)
		}
	}
	b, ok := bundle.Get("b")
	if !ok || !b.Failed {
		t.Fatalf("Expected error marker for b, got %+v", b)
	}
	if b.Summary != ErrorMarkerPrefix+"upstream 502" {
		t.Errorf("Unexpected marker %q", b.Summary)
	}

	var order []string
	for _, fd := range bundle.Findings() {
		order = append(order, fd.Query)
	}
	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("Expected issue order a,b,c, got %v", order)
	}
}

func TestResearchEmptyIssuesNoCalls(t *testing.T) {
	t.Parallel()
	s := &fakeSearcher{}
	f := NewFanOut(s, time.Second, nil)

	for _, in := range [][]string{nil, {}} {
		bundle := f.Research(context.Background(), in)
		if bundle.Len() != 0 {
			t.Errorf("Expected empty bundle, got %d findings", bundle.Len())
		}
	}
	if len(s.calls) != 0 {
		t.Errorf("Expected zero searches, got %v", s.calls)
	}
}

func TestResearchRunsConcurrentlyAndWaitsForAll(t *testing.T) {
	t.Parallel()
	s := &fakeSearcher{delay: 50 * time.Millisecond}
	f := NewFanOut(s, time.Second, nil)

	start := time.Now()
	bundle := f.Research(context.Background(), []string{"a", "b", "c", "d"})
	elapsed := time.Since(start)

	if bundle.Len() != 4 || bundle.Failures() != 0 {
		t.Fatalf("Expected 4 successful findings, got %d (%d failed)", bundle.Len(), bundle.Failures())
	}
	if s.maxSeen.Load() < 2 {
		t.Errorf("Expected concurrent searches, max in flight was %d", s.maxSeen.Load())
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("Research returned before searches settled: %v", elapsed)
	}
}

func TestResearchTimeoutBecomesMarker(t *testing.T) {
	t.Parallel()
	s := &fakeSearcher{delay: time.Second}
	f := NewFanOut(s, 20*time.Millisecond, nil)

	bundle := f.Research(context.Background(), []string{"slow"})
	got, _ := bundle.Get("slow")
	if !got.Failed || !strings.HasPrefix(got.Summary, ErrorMarkerPrefix) {
		t.Errorf("Expected timeout marker, got %+v", got)
	}
}

func TestResearchCollapsesDuplicates(t *testing.T) {
	t.Parallel()
	s := &fakeSearcher{}
	f := NewFanOut(s, time.Second, nil)

	bundle := f.Research(context.Background(), []string{"a", "a", "b"})
	if bundle.Len() != 2 {
		t.Errorf("Expected 2 distinct findings, got %d", bundle.Len())
	}
	if len(s.calls) != 2 {
		t.Errorf("Expected 2 searches, got %v", s.calls)
	}
}

type panicSearcher struct{}

func (panicSearcher) Search(context.Context, string) (string, error) {
	panic("nil map")
}

func TestResearchRecoversPanics(t *testing.T) {
	t.Parallel()
	f := NewFanOut(panicSearcher{}, time.Second, nil)

	bundle := f.Research(context.Background(), []string{"a"})
	got, _ := bundle.Get("a")
	if !got.Failed || !strings.Contains(got.Summary, "panic") {
		t.Errorf("Expected panic marker, got %+v", got)
	}
}

func TestResearchWithoutSearcher(t *testing.T) {
	t.Parallel()
	f := NewFanOut(nil, time.Second, nil)

	bundle := f.Research(context.Background(), []string{"a", "b"})
	if bundle.Failures() != 2 {
		t.Errorf("Expected every lookup to fail, got %d failures", bundle.Failures())
	}
}
