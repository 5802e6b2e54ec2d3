package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/deepguard/internal/analyze"
	"github.com/ppiankov/deepguard/internal/cache"
	"github.com/ppiankov/deepguard/internal/events"
	"github.com/ppiankov/deepguard/internal/intake"
	"github.com/ppiankov/deepguard/internal/llm"
	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/score"
	"github.com/ppiankov/deepguard/internal/store"
)

// Pipeline runs one upload through intake, analysis, composition and storage
type Pipeline struct {
	intake    *intake.Intake
	analyzer  analyze.Analyzer
	findings  *cache.FindingsCache
	composer  *score.Composer
	narrator  *llm.Narrator // Optional LLM narrator (nil if disabled)
	store     store.Store
	publisher events.Publisher // Optional
	logger    *slog.Logger
	now       func() time.Time
}

// Deps are the collaborators of a Pipeline. Findings, Narrator and Publisher may be nil.
type Deps struct {
	Intake    *intake.Intake
	Analyzer  analyze.Analyzer
	Findings  *cache.FindingsCache
	Narrator  *llm.Narrator
	Store     store.Store
	Publisher events.Publisher
	Logger    *slog.Logger
}

// New creates a pipeline from its collaborators
func New(d Deps) *Pipeline {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		intake:    d.Intake,
		analyzer:  d.Analyzer,
		findings:  d.Findings,
		composer:  score.NewComposer(),
		narrator:  d.Narrator,
		store:     d.Store,
		publisher: d.Publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates, analyzes and stores one upload and returns the stored record.
// Nothing is stored when any step before the store write fails, and the uploaded bytes are discarded.
func (p *Pipeline) Submit(ctx context.Context, kind model.MediaKind, fileName, contentType string, r io.Reader) (model.Record, error) {
	media, err := p.intake.Accept(ctx, kind, fileName, contentType, r)
	if err != nil {
		return model.Record{}, err
	}

	rec, err := p.process(ctx, media)
	if err != nil {
		if delErr := p.intake.Discard(media); delErr != nil {
			p.logger.WarnContext(ctx, "discard failed upload", "file_id", media.ID, "error", delErr)
		}
		p.logger.WarnContext(ctx, "analysis failed",
			"file_id", media.ID,
			"kind", media.Kind,
			"error", err,
		)
		return model.Record{}, err
	}

	p.publish(ctx, rec)

	p.logger.InfoContext(ctx, "verdict recorded",
		"file_id", rec.FileID,
		"kind", rec.Kind,
		"is_deepfake", rec.Verdict.IsDeepfake,
		"manipulation_type", rec.Verdict.ManipulationType,
		"confidence", rec.Verdict.Confidence,
	)
	return rec, nil
}

func (p *Pipeline) process(ctx context.Context, media model.UploadedMedia) (model.Record, error) {
	findings, err := p.analyze(ctx, media)
	if err != nil {
		return model.Record{}, err
	}

	at := p.now().UTC().Truncate(time.Microsecond)
	rec := model.Record{
		FileID:    media.ID,
		FileName:  media.FileName,
		Kind:      media.Kind,
		Verdict:   p.composer.Compose(findings, at),
		Timestamp: at,
	}

	// Narration runs after the verdict is final and only attaches text
	if p.narrator.IsEnabled() {
		rec.Summary = p.narrator.Narrate(ctx, rec, p.composer.Signals(findings))
	}

	if err := p.store.Put(ctx, rec); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

// analyze consults the findings cache before running the analyzer
func (p *Pipeline) analyze(ctx context.Context, media model.UploadedMedia) (model.Findings, error) {
	if cached, ok := p.findings.Get(media.Kind, media.SHA256); ok {
		p.logger.DebugContext(ctx, "findings cache hit", "file_id", media.ID, "sha256", media.SHA256)
		return cached, nil
	}

	findings, err := p.analyzer.Analyze(ctx, media)
	if err != nil {
		return model.Findings{}, err
	}

	if err := p.findings.Put(media.SHA256, findings); err != nil {
		p.logger.WarnContext(ctx, "cache findings failed", "file_id", media.ID, "error", err)
	}
	return findings, nil
}

func (p *Pipeline) publish(ctx context.Context, rec model.Record) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, events.NewVerdictRecorded(rec)); err != nil {
		p.logger.WarnContext(ctx, "publish verdict event failed", "file_id", rec.FileID, "error", err)
	}
}

// Get returns a stored record
func (p *Pipeline) Get(ctx context.Context, id string) (model.Record, error) {
	return p.store.Get(ctx, id)
}

// Recent returns up to limit stored records, newest first
func (p *Pipeline) Recent(ctx context.Context, limit int) ([]model.Record, error) {
	return p.store.List(ctx, limit)
}

// Signals explains how a record's verdict was composed
func (p *Pipeline) Signals(rec model.Record) []model.Signal {
	return p.composer.Signals(rec.Verdict.Details)
}

// AnalyzeFile runs a local file through the pipeline. The media kind is detected from the content.
func (p *Pipeline) AnalyzeFile(ctx context.Context, path string) (model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Record{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReaderSize(f, 3072)
	head, err := br.Peek(3072)
	if err != nil && !errors.Is(err, io.EOF) {
		return model.Record{}, fmt.Errorf("read %s: %w", path, err)
	}

	kind, contentType, err := intake.DetectKind(head)
	if err != nil {
		return model.Record{}, model.NewValidationError(model.CodeUnsupportedType, "%s: %v", filepath.Base(path), err)
	}

	return p.Submit(ctx, kind, filepath.Base(path), contentType, br)
}
