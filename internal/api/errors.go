package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kalambet/roofcheck/internal/claimdoc"
	"github.com/kalambet/roofcheck/internal/imaging"
	"github.com/kalambet/roofcheck/internal/inspection"
	"github.com/kalambet/roofcheck/internal/storage"
	"github.com/kalambet/roofcheck/internal/wizard"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps an inspection service error to a status code.
// Wizard rule violations carry a message meant for the inspector.
func writeServiceError(w http.ResponseWriter, err error) {
	var rule *wizard.RuleError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig), errors.Is(err, claimdoc.ErrTooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "upload exceeds %d bytes", maxUploadSize)
	case errors.Is(err, imaging.ErrTooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "%v", err)
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, wizard.ErrUnknownStep):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.As(err, &rule):
		httpError(w, http.StatusConflict, "wizard_error", "%s", rule.Message)
	case errors.Is(err, wizard.ErrAtStart),
		errors.Is(err, wizard.ErrPhotoRequired),
		errors.Is(err, wizard.ErrNotEnoughHailHits),
		errors.Is(err, wizard.ErrInterviewIncomplete):
		httpError(w, http.StatusConflict, "wizard_error", "%v", err)
	case errors.Is(err, inspection.ErrInvalidInput),
		errors.Is(err, inspection.ErrNotPhotoStep),
		errors.Is(err, wizard.ErrUnknownAccessoryType),
		errors.Is(err, wizard.ErrIndexOutOfRange),
		errors.Is(err, imaging.ErrBadDataURL),
		errors.Is(err, claimdoc.ErrNotPDF),
		errors.Is(err, claimdoc.ErrNoText):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error: %v", err)
	}
}
