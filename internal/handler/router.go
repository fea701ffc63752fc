package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/text/language"

	"github.com/mikrogrup/itbot/backend/internal/handler/assistant"
	"github.com/mikrogrup/itbot/backend/internal/handler/auth"
	"github.com/mikrogrup/itbot/backend/internal/handler/chat"
	"github.com/mikrogrup/itbot/backend/internal/handler/live"
	"github.com/mikrogrup/itbot/backend/internal/handler/stream"
	"github.com/mikrogrup/itbot/backend/internal/handler/web"
	"github.com/mikrogrup/itbot/backend/internal/i18n"
	middlewarePkg "github.com/mikrogrup/itbot/backend/internal/middleware"
	chatService "github.com/mikrogrup/itbot/backend/internal/service/chat"
	"github.com/mikrogrup/itbot/backend/pkg/utils"
)

// Dependencies are the services the HTTP layer is wired to.
type Dependencies struct {
	ChatSvc  *chatService.Service
	Provider auth.SignInProvider
	Resolver auth.PrincipalResolver
	// Completer may be nil; every turn then answers with the technical-difficulty notice.
	Completer      chatService.Completer
	HistoryLimit   int
	AllowedOrigins []string
	CookieSecure   bool
	Locale         language.Tag
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) (http.Handler, error) {
	pages, err := web.New()
	if err != nil {
		return nil, err
	}

	sessions := middlewarePkg.NewSessions(deps.ChatSvc, deps.CookieSecure)
	authHandler := auth.New(deps.Provider, deps.Resolver, deps.ChatSvc, sessions, newConversationFactory(deps))

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middlewarePkg.Locale(deps.Locale))
		r.Use(sessions.Handler)

		pages.RegisterRoutes(r)
		authHandler.RegisterRoutes(r)

		r.Route("/api", func(api chi.Router) {
			assistant.New().RegisterRoutes(api)

			api.Group(func(api chi.Router) {
				api.Use(middlewarePkg.RequirePrincipal)

				authHandler.RegisterAPIRoutes(api)
				chat.New().RegisterRoutes(api)
				stream.New().RegisterRoutes(api)
				live.NewWebSocketHandler(deps.AllowedOrigins).RegisterRoutes(api)
			})
		})
	})

	return r, nil
}

// newConversationFactory builds a fresh transcript per sign-in, greeting and failure notice
// rendered in the language the user signed in with.
func newConversationFactory(deps Dependencies) auth.ConversationFactory {
	return func(loc *i18n.Localizer) *chatService.Coordinator {
		return chatService.NewCoordinator(deps.Completer, chatService.CoordinatorConfig{
			HistoryLimit:  deps.HistoryLimit,
			FailureNotice: loc.Text(i18n.TechnicalDifficulty),
			Greeting:      loc.Text(i18n.AssistantGreeting),
		})
	}
}
