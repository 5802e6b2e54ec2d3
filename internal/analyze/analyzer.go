package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
)

// Analyzer turns stored media into raw findings.
// Implementations must be safe for concurrent use.
type Analyzer interface {
	Analyze(ctx context.Context, media model.UploadedMedia) (model.Findings, error)
}

// HeuristicAnalyzer runs the fixed signal-processing checks for each media kind.
// The stored file is decoded once; the checks then run in parallel on the decoded input.
type HeuristicAnalyzer struct {
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// NewHeuristicAnalyzer creates an analyzer running at most workers checks at once per upload
func NewHeuristicAnalyzer(workers int, timeout time.Duration, logger *slog.Logger) *HeuristicAnalyzer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicAnalyzer{workers: workers, timeout: timeout, logger: logger}
}

// Analyze decodes the media and runs its checks. Any failure yields an AnalysisError and no findings.
func (a *HeuristicAnalyzer) Analyze(ctx context.Context, media model.UploadedMedia) (findings model.Findings, err error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	// Decoders are fed untrusted bytes
	defer func() {
		if rec := recover(); rec != nil {
			findings, err = model.Findings{}, &model.AnalysisError{Kind: media.Kind, Err: fmt.Errorf("decoder panic: %v", rec)}
		}
	}()

	start := time.Now()
	switch media.Kind {
	case model.KindImage:
		findings, err = a.analyzeImage(ctx, media.Location)
	case model.KindVideo:
		findings, err = a.analyzeVideo(ctx, media.Location)
	case model.KindAudio:
		findings, err = a.analyzeAudio(ctx, media.Location)
	default:
		err = fmt.Errorf("unsupported media kind %q", media.Kind)
	}
	if err != nil {
		a.logger.Warn("analysis failed",
			"file_id", media.ID,
			"kind", media.Kind,
			"error", err,
		)
		return model.Findings{}, &model.AnalysisError{Kind: media.Kind, Err: err}
	}

	if err := findings.Validate(); err != nil {
		return model.Findings{}, &model.AnalysisError{Kind: media.Kind, Err: err}
	}

	a.logger.Debug("analysis completed",
		"file_id", media.ID,
		"kind", media.Kind,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return findings, nil
}
