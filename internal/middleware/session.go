package middleware

import (
	"context"
	"log"
	"net/http"

	chatService "github.com/mikrogrup/itbot/backend/internal/service/chat"
	"github.com/mikrogrup/itbot/backend/pkg/utils"
)

// SessionCookieName names the cookie carrying the browser session ID.
const SessionCookieName = "itbot_session"

type sessionKey struct{}

// Sessions attaches the browser session to every request, creating one when needed.
type Sessions struct {
	svc    *chatService.Service
	secure bool
}

// NewSessions returns the session middleware.
func NewSessions(svc *chatService.Service, secureCookie bool) *Sessions {
	return &Sessions{svc: svc, secure: secureCookie}
}

// Handler loads the session named by the cookie or starts a new one.
func (m *Sessions) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var session *chatService.Session
		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			session, _ = m.svc.GetSession(ctx, cookie.Value)
		}

		if session == nil {
			created, err := m.svc.CreateSession(ctx)
			if err != nil {
				log.Printf("[session] failed to create session: %v", err)
				utils.RespondError(w, http.StatusInternalServerError, "session unavailable")
				return
			}
			session = created
			m.SetCookie(w, session)
		}

		next.ServeHTTP(w, r.WithContext(WithSession(ctx, session)))
	})
}

// SetCookie points the browser at session.
func (m *Sessions) SetCookie(w http.ResponseWriter, session *chatService.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// WithSession stores session in ctx.
func WithSession(ctx context.Context, session *chatService.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFrom returns the session attached by Sessions.Handler.
func SessionFrom(ctx context.Context) (*chatService.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*chatService.Session)
	return session, ok && session != nil
}

// RequirePrincipal rejects API requests of sessions that are not signed in.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFrom(r.Context())
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, signedIn := session.Principal(); !signedIn {
			utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CoordinatorFrom returns the transcript owner of the request's signed-in session.
func CoordinatorFrom(ctx context.Context) (*chatService.Coordinator, error) {
	session, ok := SessionFrom(ctx)
	if !ok {
		return nil, chatService.ErrNotSignedIn
	}
	return session.Coordinator()
}
