package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePruner struct {
	mu        sync.Mutex
	calls     int
	retention time.Duration
	deleted   int64
	err       error
	swept     chan struct{}
}

func (f *fakePruner) CleanupChatHistory(_ context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	f.calls++
	f.retention = retention
	f.mu.Unlock()
	if f.swept != nil {
		select {
		case f.swept <- struct{}{}:
		default:
		}
	}
	return f.deleted, f.err
}

func TestSweep(t *testing.T) {
	t.Parallel()

	p := &fakePruner{deleted: 3}
	if got := Sweep(context.Background(), p, 24*time.Hour, nil); got != 3 {
		t.Errorf("Expected 3 deleted rows, got %d", got)
	}
	if p.retention != 24*time.Hour {
		t.Errorf("Expected retention to be forwarded, got %v", p.retention)
	}

	p = &fakePruner{err: errors.New("database is locked")}
	if got := Sweep(context.Background(), p, time.Hour, nil); got != 0 {
		t.Errorf("Expected 0 on failure, got %d", got)
	}
}

func TestStartWorkerSweepsAndStops(t *testing.T) {
	t.Parallel()

	p := &fakePruner{swept: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartWorker(ctx, p, time.Hour, 10*time.Millisecond, nil)

	for i := 0; i < 2; i++ {
		select {
		case <-p.swept:
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected sweep %d", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected worker to stop after cancel")
	}
}
