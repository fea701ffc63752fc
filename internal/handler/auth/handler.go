package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lithammer/shortuuid/v4"

	"github.com/mikrogrup/itbot/backend/internal/i18n"
	"github.com/mikrogrup/itbot/backend/internal/middleware"
	"github.com/mikrogrup/itbot/backend/internal/model/identity"
	chatService "github.com/mikrogrup/itbot/backend/internal/service/chat"
	identityService "github.com/mikrogrup/itbot/backend/internal/service/identity"
	"github.com/mikrogrup/itbot/backend/pkg/utils"
)

// SignInProvider runs the interactive half of the sign-in.
type SignInProvider interface {
	NewVerifier() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (identity.SignInResult, error)
	LogoutURL() string
}

// PrincipalResolver turns a sign-in result into the displayed user.
type PrincipalResolver interface {
	Resolve(ctx context.Context, result identity.SignInResult) identity.Principal
}

// ConversationFactory starts the transcript of a freshly signed-in user.
type ConversationFactory func(loc *i18n.Localizer) *chatService.Coordinator

// Handler serves the sign-in redirect, the callback and sign-out.
type Handler struct {
	provider      SignInProvider
	resolver      PrincipalResolver
	chatSvc       *chatService.Service
	sessions      *middleware.Sessions
	conversations ConversationFactory
	now           func() time.Time
}

// New creates the auth handler.
func New(provider SignInProvider, resolver PrincipalResolver, chatSvc *chatService.Service, sessions *middleware.Sessions, conversations ConversationFactory) *Handler {
	return &Handler{
		provider:      provider,
		resolver:      resolver,
		chatSvc:       chatSvc,
		sessions:      sessions,
		conversations: conversations,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes mounts the /auth endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/auth/login", h.handleLogin)
	r.Get("/auth/callback", h.handleCallback)
	r.Post("/auth/logout", h.handleLogout)
}

// RegisterAPIRoutes mounts the endpoints that need a signed-in session.
func (h *Handler) RegisterAPIRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	if _, signedIn := session.Principal(); signedIn {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	state := shortuuid.New()
	verifier := h.provider.NewVerifier()
	session.BeginLogin(state, verifier, h.now())

	http.Redirect(w, r, h.provider.AuthCodeURL(state, verifier), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := middleware.SessionFrom(ctx)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	query := r.URL.Query()
	pending, matched := session.TakeLogin(query.Get("state"), h.now())

	if signInErr := identityService.CallbackError(query); signInErr != nil {
		h.fail(w, r, session, signInErr)
		return
	}
	if !matched {
		h.fail(w, r, session, &identityService.SignInError{Kind: identityService.SignInInvalidState})
		return
	}

	result, err := h.provider.Exchange(ctx, query.Get("code"), pending.Verifier)
	if err != nil {
		h.fail(w, r, session, err)
		return
	}

	// The pre-login session ID may have been planted, so the signed-in user gets a new one.
	fresh, err := h.chatSvc.CreateSession(ctx)
	if err != nil {
		h.fail(w, r, session, err)
		return
	}

	principal := h.resolver.Resolve(ctx, result)
	fresh.SignIn(principal, h.conversations(middleware.LocalizerFrom(ctx)))
	h.sessions.SetCookie(w, fresh)
	if err := h.chatSvc.EndSession(ctx, session.ID); err != nil && !errors.Is(err, chatService.ErrSessionNotFound) {
		log.Printf("[auth] failed to end pre-login session: %v", err)
	}
	log.Printf("[auth] signed in %s", principal.Email)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if session, ok := middleware.SessionFrom(r.Context()); ok {
		if err := h.chatSvc.EndSession(r.Context(), session.ID); err != nil && !errors.Is(err, chatService.ErrSessionNotFound) {
			log.Printf("[auth] failed to end session: %v", err)
		}
	}
	h.sessions.ClearCookie(w)

	target := h.provider.LogoutURL()
	if target == "" {
		target = "/login"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	principal, signedIn := session.Principal()
	if !signedIn {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	utils.RespondJSON(w, http.StatusOK, principal)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, session *chatService.Session, err error) {
	log.Printf("[auth] sign-in failed: %v", err)

	key := i18n.SignInFailed
	var signInErr *identityService.SignInError
	if errors.As(err, &signInErr) {
		switch signInErr.Kind {
		case identityService.SignInCancelled:
			key = i18n.SignInCancelled
		case identityService.SignInConsentRequired:
			key = i18n.SignInConsentRequired
		case identityService.SignInInvalidState:
			key = i18n.SignInInvalidState
		}
	}

	session.SetFlash(middleware.LocalizerFrom(r.Context()).Text(key))
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
