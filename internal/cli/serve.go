package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/deepguard/internal/auth"
	"github.com/ppiankov/deepguard/internal/pipeline"
	"github.com/ppiankov/deepguard/internal/retention"
	"github.com/ppiankov/deepguard/internal/server"
	"github.com/ppiankov/deepguard/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DeepGuard HTTP API",
	Long: `Serve the analysis API:

  GET  /                       service information
  GET  /health                 liveness
  POST /api/analyze/{kind}     multipart upload (field "file"), kind = image|video|audio
  GET  /api/results/{file_id}  stored verdict
  GET  /api/results?limit=N    recent verdicts
  GET  /api/stats              dashboard statistics

Example:
  deepguard serve
  deepguard serve --port 9000
  DEEPGUARD_STORE_DRIVER=sqlite DEEPGUARD_STORE_DSN=deepguard.db deepguard serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "listen host (default from config)")
	serveCmd.Flags().Int("port", 0, "listen port (default from config)")
	serveCmd.Flags().Bool("demo-stats", false, "serve sample dashboard statistics")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("dashboard.demo", serveCmd.Flags().Lookup("demo-stats"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close resources", "error", err)
		}
	}()

	opts := server.Options{
		Config:  cfg,
		Backend: svc,
		Version: Version,
		Logger:  logger,
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		opts.Limiter = worker.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	if cfg.Auth.Enabled {
		signer, err := auth.NewSigner(cfg.SecretKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("configure auth: %w", err)
		}
		opts.Signer = signer
	}
	if cfg.Dashboard.Demo {
		opts.Stats = server.NewDemoStats()
	}

	janitor := retention.NewJanitor(svc.Intake, svc.Store,
		cfg.Retention.MediaTTL, cfg.Retention.VerdictTTL, cfg.Retention.SweepInterval, logger)
	// Runs before the deferred svc.Close, so no sweep outlives the store
	defer janitor.Start(ctx)()

	logger.Info("starting deepguard",
		"version", Version,
		"environment", cfg.Environment,
		"addr", cfg.Server.Addr(),
		"store", cfg.Store.Driver,
		"auth", cfg.Auth.Enabled,
		"narrator", cfg.LLM.Provider,
	)
	if !cfg.IsProduction() && !cfg.Auth.Enabled {
		logger.Warn("API authentication is disabled")
	}

	return server.New(opts).ListenAndServe(ctx)
}
