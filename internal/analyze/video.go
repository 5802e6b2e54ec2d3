package analyze

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	mp4 "github.com/abema/go-mp4"
	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/worker"
	"gonum.org/v1/gonum/stat"
)

// Video check parameters
const (
	maxSampledFrames  = 30
	frameJumpRatio    = 3.0  // Consecutive sampled frames differing in size by more than this factor
	timingDeviation   = 0.10 // Allowed relative deviation from the median frame duration
	referenceBPP      = 0.1  // Typical bits per pixel of a camera H.264 encode
	compressionSpread = 3.0
)

// ErrNoVideoTrack is returned when a container holds no usable video track
var ErrNoVideoTrack = errors.New("no video track with samples")

// decodedVideo is the shared read-only input of the video checks
type decodedVideo struct {
	width, height int
	duration      float64 // seconds
	sizes         []float64
	deltas        []float64
	sampled       []int // indices of the frames inspected by the per-frame checks
}

func decodeVideo(path string) (*decodedVideo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := mp4.Probe(f)
	if err != nil {
		return nil, fmt.Errorf("probe container: %w", err)
	}

	track := selectVideoTrack(info.Tracks, info.Segments)
	if track == nil {
		return nil, ErrNoVideoTrack
	}

	d := &decodedVideo{}
	if len(track.Samples) > 0 {
		d.sizes = make([]float64, len(track.Samples))
		d.deltas = make([]float64, len(track.Samples))
		for i, s := range track.Samples {
			d.sizes[i] = float64(s.Size)
			d.deltas[i] = float64(s.TimeDelta)
		}
	} else {
		d.sizes, d.deltas = fragmentFrames(info.Segments, track.TrackID)
	}
	if len(d.sizes) == 0 {
		return nil, ErrNoVideoTrack
	}

	var ticks float64
	for _, delta := range d.deltas {
		ticks += delta
	}

	if track.AVC != nil {
		d.width, d.height = int(track.AVC.Width), int(track.AVC.Height)
	}

	if track.Timescale > 0 {
		if track.Duration > 0 {
			d.duration = float64(track.Duration) / float64(track.Timescale)
		} else {
			d.duration = ticks / float64(track.Timescale)
		}
	}

	step := max(1, len(d.sizes)/maxSampledFrames)
	for i := 0; i < len(d.sizes) && len(d.sampled) < maxSampledFrames; i += step {
		d.sampled = append(d.sampled, i)
	}

	return d, nil
}

// selectVideoTrack prefers an AVC track, then any non-audio track with samples.
// Tracks of a fragmented file carry no samples; their frames live in segments.
func selectVideoTrack(tracks mp4.Tracks, segments mp4.Segments) *mp4.Track {
	fragmented := make(map[uint32]bool, len(segments))
	for _, seg := range segments {
		if seg.SampleCount > 0 {
			fragmented[seg.TrackID] = true
		}
	}

	var fallback *mp4.Track
	for _, t := range tracks {
		if len(t.Samples) == 0 && !fragmented[t.TrackID] {
			continue
		}
		if t.Codec == mp4.CodecAVC1 {
			return t
		}
		if t.Codec != mp4.CodecMP4A && fallback == nil {
			fallback = t
		}
	}
	return fallback
}

// fragmentFrames spreads each segment's bytes and duration evenly over its samples.
// Per-sample sizes of a fragment are not in the segment index, so frames within one
// segment look alike and jumps show up only at segment boundaries.
func fragmentFrames(segments mp4.Segments, trackID uint32) (sizes, deltas []float64) {
	for _, seg := range segments {
		if seg.TrackID != trackID || seg.SampleCount == 0 {
			continue
		}
		n := float64(seg.SampleCount)
		size := float64(seg.Size) / n
		delta := float64(seg.Duration) / n
		for i := uint32(0); i < seg.SampleCount; i++ {
			sizes = append(sizes, size)
			deltas = append(deltas, delta)
		}
	}
	return sizes, deltas
}

func (a *HeuristicAnalyzer) analyzeVideo(ctx context.Context, path string) (model.Findings, error) {
	d, err := decodeVideo(path)
	if err != nil {
		return model.Findings{}, err
	}

	out := model.VideoFindings{
		FramesAnalyzed:  len(d.sampled),
		DurationSeconds: d.duration,
		Width:           d.width,
		Height:          d.height,
	}
	if d.duration > 0 {
		out.FPS = float64(len(d.sizes)) / d.duration
	}

	tasks := []worker.Task{
		{Name: "frame_anomaly", Run: func(context.Context) error { out.AnomalyScore = frameAnomalyScore(d); return nil }},
		{Name: "temporal", Run: func(context.Context) error {
			out.TemporalInconsistency, out.FaceInconsistencies = temporalScore(d)
			return nil
		}},
		{Name: "compression", Run: func(context.Context) error { out.CompressionArtifacts = compressionScore(d); return nil }},
	}
	if err := worker.RunTasks(ctx, a.workers, tasks); err != nil {
		return model.Findings{}, err
	}

	return model.NewVideoFindings(out), nil
}

// frameAnomalyScore is half the coefficient of variation of sampled frame sizes
func frameAnomalyScore(d *decodedVideo) float64 {
	sizes := make([]float64, len(d.sampled))
	for i, idx := range d.sampled {
		sizes[i] = d.sizes[idx]
	}
	if len(sizes) < 2 {
		return fallbackScore
	}
	m, std := stat.MeanStdDev(sizes, nil)
	if m <= 0 {
		return fallbackScore
	}
	return clamp01(std / m / 2)
}

// temporalScore is the fraction of sampled frames with an abrupt size jump or irregular timing
func temporalScore(d *decodedVideo) (float64, int) {
	if len(d.sampled) == 0 {
		return fallbackScore, 0
	}

	median := medianOf(d.deltas)
	flagged := 0
	for n, idx := range d.sampled {
		irregular := median > 0 && math.Abs(d.deltas[idx]-median)/median > timingDeviation
		jump := false
		if n > 0 {
			prev := d.sizes[d.sampled[n-1]]
			cur := d.sizes[idx]
			if prev > 0 && cur > 0 {
				ratio := cur / prev
				jump = ratio > frameJumpRatio || ratio < 1/frameJumpRatio
			}
		}
		if irregular || jump {
			flagged++
		}
	}

	return clamp01(float64(flagged) / float64(len(d.sampled))), flagged
}

// compressionScore measures how far the stream's bits per pixel is from a camera encode
func compressionScore(d *decodedVideo) float64 {
	if d.width == 0 || d.height == 0 || len(d.sizes) == 0 {
		return fallbackScore
	}
	var total float64
	for _, s := range d.sizes {
		total += s
	}
	bpp := total * 8 / (float64(len(d.sizes)) * float64(d.width) * float64(d.height))
	if bpp <= 0 {
		return 1
	}
	return clamp01(math.Abs(math.Log(bpp/referenceBPP)) / compressionSpread)
}

func medianOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
