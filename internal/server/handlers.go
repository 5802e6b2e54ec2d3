package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ppiankov/deepguard/internal/auth"
	"github.com/ppiankov/deepguard/internal/model"
)

// Listing bounds for GET /api/results
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.info)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(model.TimestampLayout),
	})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseMediaKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.fail(w, r, "analyze", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes+multipartOverhead)
	part, err := filePart(r)
	if err != nil {
		s.fail(w, r, "read upload", err)
		return
	}
	defer func() { _ = part.Close() }()

	rec, err := s.backend.Submit(r.Context(), kind, part.FileName(), part.Header.Get("Content-Type"), part)
	if err != nil {
		s.fail(w, r, "analyze upload", err)
		return
	}

	writeJSON(w, http.StatusOK, rec.Response())
}

// filePart returns the multipart part named "file" without buffering the body
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, model.NewValidationError(model.CodeMissingFile, "Expected a multipart/form-data body with a file field")
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, model.NewValidationError(model.CodeMissingFile, "No file uploaded")
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, model.NewValidationError(model.CodeMissingFile, "Malformed multipart body")
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	rec, err := s.backend.Get(r.Context(), chi.URLParam(r, "file_id"))
	if err != nil {
		s.fail(w, r, "get result", err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Response())
}

type listResponse struct {
	Results []model.AnalysisResponse `json:"results"`
	Count   int                      `json:"count"`
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	recs, err := s.backend.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, r, "list results", err)
		return
	}

	resp := listResponse{Results: make([]model.AnalysisResponse, 0, len(recs))}
	for _, rec := range recs {
		resp.Results = append(resp.Results, rec.Response())
	}
	resp.Count = len(resp.Results)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.fail(w, r, "dashboard stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// fail logs err and writes the mapped error response
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, detail := mapError(err)
	fields := []any{
		"operation", op,
		"status_code", status,
		"request_id", requestIDFromContext(r.Context()),
		"error", err.Error(),
	}
	if claims, ok := auth.FromContext(r.Context()); ok {
		fields = append(fields, "subject", claims.Subject)
	}
	if status >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed", fields...)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected", fields...)
	}
	writeError(w, status, detail)
}
