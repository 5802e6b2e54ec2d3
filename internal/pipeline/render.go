package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/deepguard/internal/llm"
	"github.com/ppiankov/deepguard/internal/model"
)

// RenderJSON writes the wire form of rec to path
func RenderJSON(rec model.Record, path string) error {
	data, err := json.MarshalIndent(rec.Response(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// RenderSummaryMarkdown writes the narrative of rec to path. Records without one are skipped.
func RenderSummaryMarkdown(rec model.Record, path string) (bool, error) {
	if rec.Summary == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(llm.RenderMarkdown(rec, rec.Summary)), 0o644); err != nil {
		return false, fmt.Errorf("write summary: %w", err)
	}
	return true, nil
}

// SummaryPath returns the markdown path that accompanies a JSON report
func SummaryPath(jsonPath string) string {
	return strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".summary.md"
}

// PrintVerdict writes a human-readable verdict. Verbose output lists every scoring signal.
func PrintVerdict(w io.Writer, rec model.Record, signals []model.Signal, verbose bool) {
	v := rec.Verdict

	status := "AUTHENTIC"
	if v.IsDeepfake {
		status = "MANIPULATED"
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s (%s)\n", rec.FileName, rec.Kind)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  File ID:      %s\n", rec.FileID)
	fmt.Fprintf(w, "  Verdict:      %s\n", status)
	fmt.Fprintf(w, "  Type:         %s\n", v.ManipulationType)
	fmt.Fprintf(w, "  Confidence:   %.1f%%\n", v.Confidence*100)
	if v.IsAIGenerated != nil {
		fmt.Fprintf(w, "  AI generated: %t\n", *v.IsAIGenerated)
	}
	if v.IsVoiceCloned != nil {
		fmt.Fprintf(w, "  Voice cloned: %t\n", *v.IsVoiceCloned)
	}
	fmt.Fprintf(w, "\n  %s\n", v.Explanation)

	if verbose && len(signals) > 0 {
		fmt.Fprintf(w, "\n  Signals:\n")
		for _, s := range signals {
			fmt.Fprintf(w, "    [%s] %s: %s\n", s.Severity, s.Type, s.Description)
		}
	}

	if rec.Summary != nil {
		fmt.Fprintf(w, "\n  Summary (%s):\n", rec.Summary.Provider)
		if rec.Summary.Text != "" {
			fmt.Fprintf(w, "    %s\n", rec.Summary.Text)
		}
		for _, warning := range rec.Summary.Warnings {
			fmt.Fprintf(w, "    ! %s\n", warning)
		}
	}
	fmt.Fprintf(w, "\n")
}
