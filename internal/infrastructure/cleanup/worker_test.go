package cleanup

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	purged  int
	err     error
	evicted int
	cutoffs []time.Time
	purges  atomic.Int32
}

func (f *fakeTarget) PurgeExpired(context.Context) (int, error) {
	f.purges.Add(1)
	return f.purged, f.err
}

func (f *fakeTarget) EvictIdleSyncers(cutoff time.Time) int {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.evicted
}

func TestRunOnceReportsCounts(t *testing.T) {
	target := &fakeTarget{purged: 3, evicted: 2}
	w := NewWorker(target, &Config{CleanupInterval: time.Minute, SyncerIdleTTL: time.Hour, VerboseReporting: true}, nil)
	var out bytes.Buffer
	w.reporter = NewReporter(&out)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	res, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, res.StatesPurged)
	require.Equal(t, 2, res.SyncersEvicted)
	require.Equal(t, []time.Time{now.Add(-time.Hour)}, target.cutoffs)
	require.Contains(t, out.String(), "PERIODIC STATE CLEANUP")
}

func TestRunOnceStopsOnPurgeError(t *testing.T) {
	target := &fakeTarget{err: errors.New("disk full")}
	w := NewWorker(target, &Config{}, nil)

	_, err := w.RunOnce(context.Background())
	require.Error(t, err)
	require.Empty(t, target.cutoffs)
}

func TestStartStopsWithContext(t *testing.T) {
	target := &fakeTarget{}
	w := NewWorker(target, &Config{CleanupInterval: 5 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return target.purges.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
