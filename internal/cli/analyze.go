package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	outJSON        string
	analyzeTimeout time.Duration
	persist        bool
	llmProvider    string
	llmModel       string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a single local media file",
	Long: `Analyze runs one image, video or audio file through the same checks
as the HTTP API. The media kind is detected from the file content.

By default the upload and verdict live in a temporary workspace and are
discarded afterwards; use --persist to write to the configured store.

Example:
  deepguard analyze portrait.jpg
  deepguard analyze clip.mp4 --json clip.json -v
  deepguard analyze voicemail.wav --llm-provider ollama --llm-model llama3`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "write the JSON report to this path")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 2*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&persist, "persist", false, "store the upload and verdict in the configured store")
	analyzeCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "narrator provider (openai, ollama); overrides config")
	analyzeCmd.Flags().StringVar(&llmModel, "llm-model", "", "narrator model name; overrides config")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(&cfg)

	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	cleanup, err := offlineWorkspace(&cfg, persist)
	if err != nil {
		return err
	}
	defer cleanup()

	svc, err := pipeline.Build(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Analyzing %s...\n", path)
	}

	rec, err := svc.AnalyzeFile(ctx, path)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}

	pipeline.PrintVerdict(os.Stdout, rec, svc.Signals(rec), verbose)

	if outJSON != "" {
		if err := pipeline.RenderJSON(rec, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)

		mdPath := pipeline.SummaryPath(outJSON)
		if wrote, err := pipeline.RenderSummaryMarkdown(rec, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to write summary: %v\n", err)
		} else if wrote {
			fmt.Fprintf(os.Stderr, "✓ Wrote Summary: %s\n", mdPath)
		}
	}

	return nil
}

// applyLLMFlags lets command flags override the configured narrator
func applyLLMFlags(cfg *model.Config) {
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

// offlineWorkspace points uploads and verdicts at a throwaway location unless persisting
func offlineWorkspace(cfg *model.Config, persist bool) (func(), error) {
	if persist {
		return func() {}, nil
	}
	dir, err := os.MkdirTemp("", "deepguard-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	cfg.Upload.Dir = filepath.Join(dir, "uploads")
	cfg.Store.Driver = model.DriverMemory
	return func() { _ = os.RemoveAll(dir) }, nil
}
