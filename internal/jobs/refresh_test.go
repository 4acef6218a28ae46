package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"chamada/internal/config"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) FetchAll(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a per-tick deadline")
	}
	r.calls.Add(1)
	return r.err
}

func TestRefreshJobTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ok := &countingRefresher{}
	failing := &countingRefresher{err: errors.New("backend down")}

	done := StartRefreshJob(ctx, config.Config{RefreshInterval: 5 * time.Millisecond, RefreshTimeout: time.Second}, nil, failing, ok)

	deadline := time.Now().Add(2 * time.Second)
	for ok.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 3 refreshes, got %d", ok.calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if failing.calls.Load() < 3 {
		t.Fatalf("expected a failing target to be retried, got %d calls", failing.calls.Load())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected job to stop after cancel")
	}
}

func TestRefreshJobWithoutTargets(t *testing.T) {
	done := StartRefreshJob(context.Background(), config.Config{}, nil)
	select {
	case <-done:
	default:
		t.Fatalf("expected job without targets to be done")
	}
}
