// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apsara-ai/derma/internal/domain/session"
)

// SessionHandler serves session export and reset.
type SessionHandler struct {
	deps Dependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps Dependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleExport handles GET /api/chat/session/{id} requests.
func (h *SessionHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	id := pathSuffix(r.URL.Path, "/api/chat/session/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_session", ErrMissingSession)
		return
	}

	export, err := h.deps.ExportSession(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	writeJSON(w, http.StatusOK, export)
}

// HandleReset handles POST /api/chat/reset/{id} requests. Resetting an
// unknown session succeeds; the end state is the same either way.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	id := pathSuffix(r.URL.Path, "/api/chat/reset/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_session", ErrMissingSession)
		return
	}

	h.deps.ResetSession(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "session reset"})
}

func pathSuffix(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	return strings.Trim(id, "/")
}
