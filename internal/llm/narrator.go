package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/deepguard/internal/model"
)

// Narrator adds an optional plain-language summary to a composed verdict.
// It runs after composition and never alters the verdict. Failures become warnings.
type Narrator struct {
	provider Provider
	config   Config

	availOnce sync.Once
	available bool
}

// NewNarrator creates a narrator; an empty provider name yields a disabled narrator
func NewNarrator(config Config) (*Narrator, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Narrator{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (n *Narrator) IsEnabled() bool {
	return n != nil && n.provider != nil
}

// ProviderName returns the configured provider, or "" when disabled
func (n *Narrator) ProviderName() string {
	if !n.IsEnabled() {
		return ""
	}
	return n.provider.Name()
}

// Narrate summarizes rec. It returns nil when disabled.
// Provider problems are reported in Narrative.Warnings, never as an error.
func (n *Narrator) Narrate(ctx context.Context, rec model.Record, signals []model.Signal) *model.Narrative {
	if !n.IsEnabled() {
		return nil
	}

	narrative := &model.Narrative{
		Provider: n.provider.Name(),
		Model:    n.config.Model,
	}

	// Checked once per process; a provider that comes up later needs a restart.
	// The check must not inherit the cancellation of whichever request triggers it.
	n.availOnce.Do(func() {
		timeout := n.config.Timeout
		if timeout <= 0 {
			timeout = DefaultConfig().Timeout
		}
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		n.available = n.provider.IsAvailable(checkCtx)
	})
	if !n.available {
		narrative.Warnings = append(narrative.Warnings,
			fmt.Sprintf("LLM provider %s not available", narrative.Provider))
		return narrative
	}

	allowed := AllowedFigures(rec, signals)
	resp, err := n.provider.Summarize(ctx, SummarizeRequest{
		Record:         rec,
		Signals:        signals,
		AllowedFigures: allowed,
		Model:          n.config.Model,
		MaxTokens:      n.config.MaxTokens,
	})
	if err != nil {
		narrative.Warnings = append(narrative.Warnings, fmt.Sprintf("Summary generation failed: %v", err))
		return narrative
	}

	narrative.Text = resp.Summary
	narrative.Model = pick(resp.Model, narrative.Model)
	narrative.Warnings = append(narrative.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	if n.config.StrictFigures {
		narrative.Warnings = append(narrative.Warnings, fmt.Sprintf("Verified %d quoted figures", len(resp.QuotedFigures)))
	}
	return narrative
}

// RenderMarkdown renders a narrative as a standalone markdown document
func RenderMarkdown(rec model.Record, n *model.Narrative) string {
	if n == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Summary\n\n")
	b.WriteString("> **GENERATED CONTENT** - written by a language model from the verdict below.\n")
	b.WriteString("> The verdict was determined independently by the heuristic checks.\n\n")
	fmt.Fprintf(&b, "- **File**: %s (`%s`)\n", rec.FileName, rec.FileID)
	fmt.Fprintf(&b, "- **Verdict**: %s (confidence %.2f%%)\n", rec.Verdict.ManipulationType, rec.Verdict.Confidence*100)
	fmt.Fprintf(&b, "- **Provider**: %s\n", n.Provider)
	if n.Model != "" {
		fmt.Fprintf(&b, "- **Model**: %s\n", n.Model)
	}
	b.WriteString("\n")

	if n.Text != "" {
		b.WriteString(n.Text)
		b.WriteString("\n")
	} else {
		b.WriteString("_No summary generated._\n")
	}

	if len(n.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range n.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
