package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/pipeline"
	"github.com/ppiankov/deepguard/internal/worker"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchPersist bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|file>",
	Short: "Analyze many local media files in parallel",
	Long: `Batch analyzes every media file in a directory, or every path listed
in a text file (one per line, # for comments):
- Files are processed in parallel with a configurable worker count
- Each file's checks also run concurrently
- A JSON report is written per file, plus a summary when a narrator is configured

Example:
  deepguard batch ./samples
  deepguard batch files.txt --concurrency 8 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of files analyzed at once")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./deepguard-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchPersist, "persist", false, "store uploads and verdicts in the configured store")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "narrator provider (openai, ollama); overrides config")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "narrator model name; overrides config")
}

func runBatch(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(&cfg)

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  DeepGuard Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Source:       %s\n", source)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  Narrator:     %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	cleanup, err := offlineWorkspace(&cfg, batchPersist)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	svc, err := pipeline.Build(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	processor := worker.NewBatchProcessor(svc, concurrency)
	results, err := processor.ProcessSource(ctx, source)
	if err != nil {
		return fmt.Errorf("process source: %w", err)
	}

	successCount := 0
	failureCount := 0
	skipped := 0
	flagged := 0

	for _, result := range results {
		if result.Error != nil {
			if isSkippable(result.Error) {
				skipped++
				fmt.Fprintf(os.Stderr, "- %s: skipped: %v\n", result.Path, result.Error)
				continue
			}
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		rec := *result.Record
		jsonPath := filepath.Join(outputDir, reportName(result.Path, rec.FileID)+".json")
		if err := pipeline.RenderJSON(rec, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if _, err := pipeline.RenderSummaryMarkdown(rec, pipeline.SummaryPath(jsonPath)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s: failed to write summary: %v\n", result.Path, err)
		}

		successCount++
		mark := "✓"
		if rec.Verdict.IsDeepfake {
			flagged++
			mark = "⚠"
		}
		fmt.Fprintf(os.Stderr, "%s %s: %s (%.1f%%)\n", mark, filepath.Base(result.Path),
			rec.Verdict.ManipulationType, rec.Verdict.Confidence*100)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d files\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Flagged:   %d\n", flagged)
	fmt.Fprintf(os.Stderr, "  Skipped:   %d\n", skipped)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if successCount == 0 && failureCount+skipped > 0 {
		return fmt.Errorf("no file could be analyzed (%d failed, %d skipped)", failureCount, skipped)
	}
	return nil
}

// isSkippable reports whether a batch input was rejected as unsupported media
// rather than failing during analysis
func isSkippable(err error) bool {
	return model.IsValidation(err)
}

// reportName derives a filesystem-safe report name from the source file and the verdict id
func reportName(path, fileID string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		case ' ':
			return '-'
		}
		return r
	}, base)
	if len(base) > 80 {
		base = base[:80]
	}
	if len(fileID) > 8 {
		fileID = fileID[:8]
	}
	return base + "-" + fileID
}
