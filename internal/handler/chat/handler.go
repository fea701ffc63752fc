package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mikrogrup/itbot/backend/internal/middleware"
	chatService "github.com/mikrogrup/itbot/backend/internal/service/chat"
	"github.com/mikrogrup/itbot/backend/pkg/utils"
)

// maxMessageBytes bounds the request body of a submitted turn.
const maxMessageBytes = 64 << 10

// Handler exposes the signed-in user's transcript over REST.
type Handler struct{}

// New creates the conversation handler.
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes mounts the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation", h.handleGetConversation)
	r.Post("/conversation/messages", h.handleSubmitMessage)
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	coord, err := middleware.CoordinatorFrom(r.Context())
	if err != nil {
		respondCoordinatorError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, coord.Snapshot())
}

func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := utils.DecodeJSON(w, r, maxMessageBytes, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coord, err := middleware.CoordinatorFrom(r.Context())
	if err != nil {
		respondCoordinatorError(w, err)
		return
	}

	// An accepted turn runs to completion even if the client goes away.
	turn, accepted := coord.SubmitUserTurn(context.WithoutCancel(r.Context()), payload.Text)
	if !accepted {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, turn)
}

func respondCoordinatorError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrNotSignedIn) {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
