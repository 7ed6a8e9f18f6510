// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	service "github.com/apsara-ai/derma/internal/app"
	"github.com/apsara-ai/derma/internal/domain/classify"
	"github.com/apsara-ai/derma/internal/domain/descriptor"
)

const defaultMaxUploadBytes = 8 << 20

// AnalyzeHandler handles skin analysis requests.
type AnalyzeHandler struct {
	deps           Dependencies
	maxUploadBytes int64
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(deps Dependencies) *AnalyzeHandler {
	return &AnalyzeHandler{deps: deps, maxUploadBytes: defaultMaxUploadBytes}
}

// HandleAnalyze handles POST /api/skin/analyze requests. The image arrives
// either as a multipart "file" part or as the raw request body.
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	data, err := readImage(r, h.maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", err)
		return
	}

	result, err := h.deps.Analyze(r.Context(), data)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeAnalysisError maps pipeline failures to distinguishable HTTP
// conditions so the front end can show a specific message.
func writeAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, descriptor.ErrUnreadableImage):
		writeError(w, http.StatusBadRequest, "unreadable_image", err)
	case errors.Is(err, service.ErrLowQualityImage):
		writeError(w, http.StatusBadRequest, "low_quality_image", err)
	case errors.Is(err, classify.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "classification_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// readImage pulls the image bytes out of a multipart form when one is
// present, or the raw body otherwise. Size is capped either way.
func readImage(r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return nil, ErrUploadTooLarge
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, ErrMissingImage
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, ErrUploadTooLarge
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, ErrUploadTooLarge
	}
	if len(data) == 0 {
		return nil, ErrMissingImage
	}
	return data, nil
}
