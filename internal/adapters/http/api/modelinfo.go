// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// ModelInfoHandler reports the classification backend.
type ModelInfoHandler struct {
	deps Dependencies
}

// NewModelInfoHandler creates a new model info handler.
func NewModelInfoHandler(deps Dependencies) *ModelInfoHandler {
	return &ModelInfoHandler{deps: deps}
}

// HandleInfo handles GET /api/models/info requests.
func (h *ModelInfoHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ModelInfo())
}
