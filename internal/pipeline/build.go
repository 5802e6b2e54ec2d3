package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/deepguard/internal/analyze"
	"github.com/ppiankov/deepguard/internal/cache"
	"github.com/ppiankov/deepguard/internal/events"
	"github.com/ppiankov/deepguard/internal/intake"
	"github.com/ppiankov/deepguard/internal/llm"
	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/store"
)

// Service is a pipeline wired from configuration together with the resources it owns
type Service struct {
	*Pipeline
	Intake    *intake.Intake
	Store     store.Store
	Publisher events.Publisher
}

// Build wires a pipeline from cfg. The caller must Close the returned service.
// A narrator that cannot be created is logged and left disabled.
func Build(ctx context.Context, cfg model.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	in := intake.New(intake.NewDiskStore(cfg.Upload.Dir), cfg.Upload.MaxBytes, logger)

	var findings *cache.FindingsCache
	if cfg.Cache.Enabled {
		var disk *cache.DiskCache
		if cfg.Cache.DiskTTL > 0 && cfg.Cache.Dir != "" {
			disk = cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL)
		}
		findings = cache.NewFindingsCache(cfg.Cache.MemoryTTL, disk)
	}

	narrator, err := llm.NewNarrator(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		logger.Warn("LLM narrator disabled", "provider", cfg.LLM.Provider, "error", err)
	} else if narrator.IsEnabled() {
		logger.Info("LLM narrator enabled", "provider", narrator.ProviderName(), "model", cfg.LLM.Model)
	}

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}

	pub, err := events.New(cfg.Events, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create event publisher: %w", err)
	}

	p := New(Deps{
		Intake:    in,
		Analyzer:  analyze.NewHeuristicAnalyzer(cfg.Analysis.Workers, cfg.Analysis.Timeout, logger),
		Findings:  findings,
		Narrator:  narrator,
		Store:     st,
		Publisher: pub,
		Logger:    logger,
	})

	return &Service{Pipeline: p, Intake: in, Store: st, Publisher: pub}, nil
}

// Close releases the store and the event publisher
func (s *Service) Close() error {
	return errors.Join(s.Publisher.Close(), s.Store.Close())
}
