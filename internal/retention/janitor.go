package retention

import (
	"context"
	"log/slog"
	"time"
)

// MediaSweeper removes stored uploads older than a cutoff
type MediaSweeper interface {
	Sweep(cutoff time.Time) (int, error)
}

// RecordPurger removes stored verdicts older than a cutoff
type RecordPurger interface {
	Purge(ctx context.Context, olderThan time.Time) (int, error)
}

// Janitor periodically enforces media and verdict time-to-live values.
// A zero TTL disables the corresponding sweep.
type Janitor struct {
	media      MediaSweeper
	records    RecordPurger
	mediaTTL   time.Duration
	verdictTTL time.Duration
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// Stats reports one sweep
type Stats struct {
	MediaRemoved  int
	RecordsPurged int
	MediaErr      error
	RecordsErr    error
}

func NewJanitor(media MediaSweeper, records RecordPurger, mediaTTL, verdictTTL, interval time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{
		media:      media,
		records:    records,
		mediaTTL:   mediaTTL,
		verdictTTL: verdictTTL,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Run sweeps once immediately, then on every interval until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// Start runs the janitor in the background. The returned stop cancels it and
// blocks until an in-flight sweep has finished.
func (j *Janitor) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// RunOnce performs a single sweep. Failures are logged and reported, never fatal.
func (j *Janitor) RunOnce(ctx context.Context) Stats {
	var stats Stats
	now := j.now()

	if j.media != nil && j.mediaTTL > 0 {
		stats.MediaRemoved, stats.MediaErr = j.media.Sweep(now.Add(-j.mediaTTL))
		if stats.MediaErr != nil {
			j.logger.WarnContext(ctx, "media sweep failed", "error", stats.MediaErr)
		}
	}

	if j.records != nil && j.verdictTTL > 0 {
		stats.RecordsPurged, stats.RecordsErr = j.records.Purge(ctx, now.Add(-j.verdictTTL))
		if stats.RecordsErr != nil {
			j.logger.WarnContext(ctx, "verdict purge failed", "error", stats.RecordsErr)
		}
	}

	if stats.MediaRemoved > 0 || stats.RecordsPurged > 0 {
		j.logger.InfoContext(ctx, "retention sweep",
			"media_removed", stats.MediaRemoved,
			"records_purged", stats.RecordsPurged,
		)
	}
	return stats
}
