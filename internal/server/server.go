package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ppiankov/deepguard/internal/auth"
	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/worker"
	"golang.org/x/net/netutil"
)

// multipartOverhead is the allowance for multipart framing on top of the upload limit
const multipartOverhead = 1 << 20

// shutdownTimeout bounds graceful shutdown of in-flight requests
const shutdownTimeout = 15 * time.Second

// Backend runs and retrieves analyses
type Backend interface {
	Submit(ctx context.Context, kind model.MediaKind, fileName, contentType string, r io.Reader) (model.Record, error)
	Get(ctx context.Context, fileID string) (model.Record, error)
	Recent(ctx context.Context, limit int) ([]model.Record, error)
}

// Info is returned by GET /
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Options configure a Server. Stats, Limiter and Signer are optional.
type Options struct {
	Config  model.Config
	Backend Backend
	Stats   StatsProvider
	Limiter *worker.Limiter
	Signer  *auth.Signer
	Version string
	Logger  *slog.Logger
}

// Server is the HTTP surface of DeepGuard
type Server struct {
	cfg     model.Config
	backend Backend
	stats   StatsProvider
	limiter *worker.Limiter
	signer  *auth.Signer
	info    Info
	logger  *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stats := opts.Stats
	if stats == nil {
		stats = NewStoreStats(opts.Backend)
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		cfg:     opts.Config,
		backend: opts.Backend,
		stats:   stats,
		limiter: opts.Limiter,
		signer:  opts.Signer,
		info: Info{
			Name:        "DeepGuard AI",
			Version:     version,
			Description: "Advanced Deepfake Detection API",
		},
		logger: logger,
	}
}

// Handler builds the router with its middleware stack
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	r.Get("/", s.root)
	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimitMiddleware)
		}
		if s.signer != nil {
			r.Use(auth.Middleware(s.signer))
		}
		r.Post("/analyze/{kind}", s.analyze)
		r.Get("/results", s.listResults)
		r.Get("/results/{file_id}", s.getResult)
		r.Get("/stats", s.dashboardStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if s.cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.Server.MaxConnections)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
