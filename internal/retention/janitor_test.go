package retention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/deepguard/internal/logging"
)

type fakeSweeper struct {
	cutoff time.Time
	calls  atomic.Int32
	n      int
	err    error
}

func (f *fakeSweeper) Sweep(cutoff time.Time) (int, error) {
	f.calls.Add(1)
	f.cutoff = cutoff
	return f.n, f.err
}

type fakePurger struct {
	cutoff time.Time
	calls  atomic.Int32
	n      int
	err    error
}

func (f *fakePurger) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	f.calls.Add(1)
	f.cutoff = olderThan
	return f.n, f.err
}

func TestRunOnce_Cutoffs(t *testing.T) {
	media := &fakeSweeper{n: 2}
	records := &fakePurger{n: 5}
	j := NewJanitor(media, records, time.Hour, 24*time.Hour, time.Minute, logging.Discard())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	stats := j.RunOnce(context.Background())
	if stats.MediaRemoved != 2 || stats.RecordsPurged != 5 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !media.cutoff.Equal(now.Add(-time.Hour)) {
		t.Errorf("media cutoff = %v", media.cutoff)
	}
	if !records.cutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("record cutoff = %v", records.cutoff)
	}
}

func TestRunOnce_ZeroTTLDisables(t *testing.T) {
	media := &fakeSweeper{}
	records := &fakePurger{}
	j := NewJanitor(media, records, 0, 0, time.Minute, logging.Discard())

	j.RunOnce(context.Background())
	if media.calls.Load() != 0 || records.calls.Load() != 0 {
		t.Error("expected no sweeps with zero TTLs")
	}
}

func TestRunOnce_ErrorsAreReported(t *testing.T) {
	media := &fakeSweeper{err: errors.New("disk gone")}
	records := &fakePurger{n: 1}
	j := NewJanitor(media, records, time.Hour, time.Hour, time.Minute, logging.Discard())

	stats := j.RunOnce(context.Background())
	if stats.MediaErr == nil {
		t.Error("expected media error")
	}
	if stats.RecordsPurged != 1 {
		t.Error("media failure should not skip the verdict purge")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	media := &fakeSweeper{}
	j := NewJanitor(media, nil, time.Hour, 0, 10*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
	if media.calls.Load() < 2 {
		t.Errorf("expected repeated sweeps, got %d", media.calls.Load())
	}
}

type blockingPurger struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingPurger) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
		<-b.release
	}
	return 0, nil
}

func TestStart_StopWaitsForSweep(t *testing.T) {
	records := &blockingPurger{entered: make(chan struct{}), release: make(chan struct{})}
	j := NewJanitor(nil, records, 0, time.Hour, time.Hour, logging.Discard())

	stop := j.Start(context.Background())
	<-records.entered

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a purge was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(records.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after the purge finished")
	}
	if records.calls.Load() != 1 {
		t.Errorf("expected one purge, got %d", records.calls.Load())
	}
}
