package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ppiankov/deepguard/internal/model"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// mapError classifies a pipeline error into a status code and client-safe detail
func mapError(err error) (int, string) {
	var (
		validation *model.ValidationError
		analysis   *model.AnalysisError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "File exceeds the maximum upload size"
	case errors.As(err, &validation):
		switch validation.Code {
		case model.CodeTooLarge:
			return http.StatusRequestEntityTooLarge, validation.Message
		case model.CodeUnsupportedType:
			return http.StatusUnsupportedMediaType, validation.Message
		case model.CodeInvalidKind:
			return http.StatusNotFound, validation.Message
		default:
			return http.StatusBadRequest, validation.Message
		}
	case errors.As(err, &analysis):
		return http.StatusUnprocessableEntity, "Analysis failed: the file could not be decoded as " + string(analysis.Kind)
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "Analysis result not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
