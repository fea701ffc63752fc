package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mikrogrup/itbot/backend/internal/i18n"
	"github.com/mikrogrup/itbot/backend/internal/middleware"
	"github.com/mikrogrup/itbot/backend/internal/model/assistant"
	"github.com/mikrogrup/itbot/backend/internal/model/chat"
	"github.com/mikrogrup/itbot/backend/internal/model/identity"
	"github.com/mikrogrup/itbot/backend/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxFormBytes bounds the chat form body.
const maxFormBytes = 64 << 10

// Handler renders the login and chat pages.
type Handler struct {
	templates *template.Template
}

// New parses the embedded templates.
func New() (*Handler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": render.Markdown,
		"isUser":   func(s chat.Sender) bool { return s == chat.SenderUser },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Handler{templates: tmpl}, nil
}

// RegisterRoutes mounts the pages.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleChat)
	r.Post("/", h.handleSubmit)
	r.Get("/login", h.handleLogin)
}

type labels struct {
	Lang        string
	Welcome     string
	Subtitle    string
	LoginButton string
	Footer      string
	Placeholder string
	Send        string
	Logout      string
}

func labelsFor(loc *i18n.Localizer) labels {
	return labels{
		Lang:        loc.Tag().String(),
		Welcome:     loc.Text(i18n.LoginWelcome),
		Subtitle:    loc.Text(i18n.LoginSubtitle),
		LoginButton: loc.Text(i18n.LoginButton),
		Footer:      loc.Text(i18n.LoginFooter),
		Placeholder: loc.Text(i18n.ComposerPlaceholder),
		Send:        loc.Text(i18n.ComposerSend),
		Logout:      loc.Text(i18n.Logout),
	}
}

type loginPage struct {
	Labels    labels
	Assistant assistant.Profile
	Alert     string
}

type chatPage struct {
	Labels     labels
	Assistant  assistant.Profile
	Principal  identity.Principal
	Transcript chat.Transcript
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	if _, signedIn := session.Principal(); signedIn {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	loc := middleware.LocalizerFrom(r.Context())
	h.render(w, "login.html", loginPage{
		Labels:    labelsFor(loc),
		Assistant: assistant.Default(loc),
		Alert:     session.TakeFlash(),
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	principal, signedIn := session.Principal()
	coord, err := session.Coordinator()
	if !signedIn || err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	loc := middleware.LocalizerFrom(r.Context())
	h.render(w, "chat.html", chatPage{
		Labels:     labelsFor(loc),
		Assistant:  assistant.Default(loc),
		Principal:  principal,
		Transcript: coord.Snapshot(),
	})
}

// handleSubmit is the form fallback of the conversation API: it runs the turn and redirects
// back to the page.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	coord, err := middleware.CoordinatorFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	coord.SubmitUserTurn(context.WithoutCancel(r.Context()), r.PostForm.Get("text"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("[web] failed to execute template %s: %v", name, err)
	}
}
