// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/apsara-ai/derma/internal/domain/types"
)

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Analyze runs the full pipeline on raw image bytes.
	Analyze(ctx context.Context, data []byte) (types.AnalysisResult, error)

	// Chat operations delegate to the session manager.
	PostMessage(ctx context.Context, sessionID, text string) (types.ChatReply, error)
	AttachImage(ctx context.Context, sessionID string, data []byte) (types.ChatReply, error)
	ExportSession(sessionID string) (types.SessionExport, error)
	ResetSession(sessionID string)

	// ModelInfo describes the active classification backend.
	ModelInfo() types.BackendInfo
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	analyzeHandler *AnalyzeHandler
	chatHandler    *ChatHandler
	sessionHandler *SessionHandler
	modelHandler   *ModelInfoHandler
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithMaxUploadBytes caps the accepted upload size.
func WithMaxUploadBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.analyzeHandler.maxUploadBytes = n
			s.chatHandler.maxUploadBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		analyzeHandler: NewAnalyzeHandler(deps),
		chatHandler:    NewChatHandler(deps),
		sessionHandler: NewSessionHandler(deps),
		modelHandler:   NewModelInfoHandler(deps),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/skin/analyze", MetricsMiddleware(s.analyzeHandler.HandleAnalyze, "analyze"))
	mux.HandleFunc("/api/chat", MetricsMiddleware(s.chatHandler.HandleChat, "chat"))
	mux.HandleFunc("/api/chat/analyze-image", MetricsMiddleware(s.chatHandler.HandleAnalyzeImage, "chat_analyze_image"))
	mux.HandleFunc("/api/chat/session/", MetricsMiddleware(s.sessionHandler.HandleExport, "session_export"))
	mux.HandleFunc("/api/chat/reset/", MetricsMiddleware(s.sessionHandler.HandleReset, "session_reset"))
	mux.HandleFunc("/api/models/info", MetricsMiddleware(s.modelHandler.HandleInfo, "models_info"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
