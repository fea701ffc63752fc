package assistant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mikrogrup/itbot/backend/internal/middleware"
	"github.com/mikrogrup/itbot/backend/internal/model/assistant"
	"github.com/mikrogrup/itbot/backend/pkg/utils"
)

// Handler serves the assistant branding shown in the chat header.
type Handler struct{}

// New creates the assistant handler.
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes mounts the assistant routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant", h.handleGetAssistant)
}

func (h *Handler) handleGetAssistant(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, assistant.Default(middleware.LocalizerFrom(r.Context())))
}
