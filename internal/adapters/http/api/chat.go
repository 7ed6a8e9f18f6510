// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/apsara-ai/derma/internal/domain/session"
)

// chatRequest mirrors the POST /api/chat body. The question field is kept
// for older clients.
type chatRequest struct {
	Message   string `json:"message"`
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

func (c chatRequest) text() string {
	if strings.TrimSpace(c.Message) != "" {
		return c.Message
	}
	return c.Question
}

// ChatHandler handles conversational requests.
type ChatHandler struct {
	deps           Dependencies
	maxUploadBytes int64
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(deps Dependencies) *ChatHandler {
	return &ChatHandler{deps: deps, maxUploadBytes: defaultMaxUploadBytes}
}

// HandleChat handles POST /api/chat requests.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if strings.TrimSpace(req.text()) == "" {
		writeError(w, http.StatusBadRequest, "missing_message", ErrMissingMessage)
		return
	}

	reply, err := h.deps.PostMessage(r.Context(), req.SessionID, req.text())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// HandleAnalyzeImage handles POST /api/chat/analyze-image requests: a
// multipart form with a session_id field and a file part. Unknown sessions
// get 404; the image is never attached to a freshly created session.
func (h *ChatHandler) HandleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	sessionID := r.URL.Query().Get("session_id")

	data, err := readImage(r, h.maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", err)
		return
	}
	if sessionID == "" {
		sessionID = r.FormValue("session_id")
	}
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session", ErrMissingSession)
		return
	}

	reply, err := h.deps.AttachImage(r.Context(), sessionID, data)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", err)
			return
		}
		writeAnalysisError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
