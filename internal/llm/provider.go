package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize writes a plain-language narrative of an already composed verdict
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM narration
type SummarizeRequest struct {
	// Record is the stored verdict to narrate
	Record model.Record

	// Signals are the scoring inputs behind the verdict
	Signals []model.Signal

	// AllowedFigures is the STRICT allowlist of percentages the LLM may quote.
	// A narrative quoting any other figure is rejected.
	AllowedFigures []string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's narrative
type SummarizeResponse struct {
	Summary       string
	QuotedFigures []string
	Model         string
	TokensUsed    int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string // Custom endpoint (OpenAI-compatible gateway or Ollama host)
	Timeout time.Duration

	// StrictFigures enforces the percentage allowlist (should always be true)
	StrictFigures bool

	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:      "", // Disabled by default
		Timeout:       30 * time.Second,
		StrictFigures: true,
		MaxTokens:     400,
	}
}

// AllowedFigures lists every percentage the verdict and its signals justify, in the formats a model is likely to write
func AllowedFigures(rec model.Record, signals []model.Signal) []string {
	values := []float64{rec.Verdict.Confidence}
	for _, s := range signals {
		if v, ok := s.Data["score"].(float64); ok {
			values = append(values, v)
		}
	}

	seen := make(map[string]bool)
	var figures []string
	for _, v := range values {
		for _, format := range []string{"%.0f%%", "%.1f%%", "%.2f%%"} {
			f := fmt.Sprintf(format, v*100)
			if !seen[f] {
				seen[f] = true
				figures = append(figures, f)
			}
		}
	}
	return figures
}

// BuildPrompt constructs the default narration prompt with the strict figure rule
func BuildPrompt(rec model.Record, signals []model.Signal, allowed []string) string {
	v := rec.Verdict
	prompt := fmt.Sprintf(`You are explaining a DeepGuard analysis to a non-expert. DeepGuard runs fixed heuristic checks on uploaded media. The verdict below is final - you describe it, you NEVER change or second-guess it.

CRITICAL RULES:
1. You MUST ONLY quote percentages from this allowed list:
%s

2. DO NOT introduce new numbers, scores or detection methods.
3. The checks are heuristics, not proof. Never say the media "is fake" or "is real" with certainty.
4. Do not contradict the verdict or the manipulation type.

Analysis:
- File: %s (%s)
- Deepfake: %t
- Manipulation Type: %s
- Confidence: %.2f%%
- Explanation: %s

Key Signals:
`, joinFigures(allowed), rec.FileName, rec.Kind, v.IsDeepfake, v.ManipulationType, v.Confidence*100, v.Explanation)

	for i, signal := range signals {
		if i >= 6 {
			break
		}
		prompt += fmt.Sprintf("- %s (%s): %s\n", signal.Type, signal.Severity, signal.Description)
	}

	prompt += "\nProvide a 2-3 sentence summary of what the checks found and what the user should do next."

	return prompt
}

// systemPrompt is shared by all providers
const systemPrompt = "You are a careful assistant that explains media forensics results without overstating them."

func joinFigures(figures []string) string {
	if len(figures) == 0 {
		return "(No figures may be quoted)"
	}
	return "- " + strings.Join(figures, ", ")
}

var figurePattern = regexp.MustCompile(`\d+(?:\.\d+)?%`)

// extractFigures returns the distinct percentages quoted in text
func extractFigures(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, f := range figurePattern.FindAllString(text, -1) {
		if !seen[f] {
			seen[f] = true
			unique = append(unique, f)
		}
	}
	return unique
}

// verifyFigures rejects a narrative quoting a percentage outside the allowlist
func verifyFigures(summary string, allowed []string) ([]string, error) {
	quoted := extractFigures(summary)
	for _, f := range quoted {
		if !contains(allowed, f) {
			return nil, fmt.Errorf("FIGURE LEAK: LLM quoted unsupported figure: %s", f)
		}
	}
	return quoted, nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// pick returns the first non-zero value
func pick[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
