package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	chatModel "github.com/mikrogrup/itbot/backend/internal/model/chat"
	"github.com/mikrogrup/itbot/backend/internal/model/identity"
	"github.com/mikrogrup/itbot/backend/internal/middleware"
	chatservice "github.com/mikrogrup/itbot/backend/internal/service/chat"
)

// flushRecorder signals the first flush so tests know the handler has subscribed.
type flushRecorder struct {
	*httptest.ResponseRecorder
	once    sync.Once
	flushed chan struct{}
}

func (f *flushRecorder) Flush() {
	f.ResponseRecorder.Flush()
	f.once.Do(func() { close(f.flushed) })
}

func newRouter(session *chatservice.Session) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithSession(req.Context(), session)))
		})
	})
	New().RegisterRoutes(r)
	return r
}

func TestEventsStreamSnapshotAndTurn(t *testing.T) {
	chatSvc := chatservice.NewService(time.Hour)
	session, _ := chatSvc.CreateSession(context.Background())
	coord := chatservice.NewCoordinator(chatservice.CompleterFunc(func(context.Context, []chatModel.ContextEntry) (string, error) {
		return "Şifrenizi portaldan sıfırlayabilirsiniz.", nil
	}), chatservice.CoordinatorConfig{Greeting: "Merhaba!"})
	session.SignIn(identity.Principal{DisplayName: "Ayşe", Email: "ayse@mikrogrup.com"}, coord)

	r := newRouter(session)
	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder(), flushed: make(chan struct{})}
	req := httptest.NewRequest(http.MethodGet, "/conversation/events", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(rec, req)
	}()

	select {
	case <-rec.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never flushed a snapshot")
	}

	coord.SubmitUserTurn(context.Background(), "Şifremi unuttum")
	session.SignOut()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after sign-out")
	}

	body := rec.Body.String()
	for _, want := range []string{
		"event: snapshot",
		"Merhaba!",
		"event: message",
		"Şifremi unuttum",
		"Şifrenizi portaldan sıfırlayabilirsiniz.",
		"event: composing",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected stream to contain %q, got:\n%s", want, body)
		}
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestEventsRequireSignIn(t *testing.T) {
	chatSvc := chatservice.NewService(time.Hour)
	session, _ := chatSvc.CreateSession(context.Background())

	resp := httptest.NewRecorder()
	newRouter(session).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/conversation/events", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
