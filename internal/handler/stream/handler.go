package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mikrogrup/itbot/backend/internal/middleware"
	"github.com/mikrogrup/itbot/backend/pkg/utils"
)

// keepAliveInterval paces comment lines that stop proxies from closing an idle stream.
const keepAliveInterval = 15 * time.Second

// Handler pushes transcript changes to the browser via Server-Sent Events.
type Handler struct {
	keepAlive time.Duration
}

// New creates a new stream handler
func New() *Handler {
	return &Handler{keepAlive: keepAliveInterval}
}

// RegisterRoutes mounts the event stream.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation/events", h.handleEvents)
}

// handleEvents sends a snapshot first, then one event per transcript change until the client
// goes away or the user signs out. Events raced with the snapshot may arrive twice; clients
// key messages by seq.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	coord, err := middleware.CoordinatorFrom(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	events, unsubscribe := coord.Subscribe(32)
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "snapshot", coord.Snapshot()); err != nil {
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-events:
			if !open {
				log.Printf("[sse] transcript closed, ending stream")
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(evt.Type), evt); err != nil {
				log.Printf("[sse] write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}
