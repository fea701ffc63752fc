package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"

	"github.com/mikrogrup/itbot/backend/internal/i18n"
)

type localeKey struct{}

// Locale picks the response language from Accept-Language.
func Locale(fallback language.Tag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := i18n.Match(r.Header.Get("Accept-Language"), fallback)
			ctx := context.WithValue(r.Context(), localeKey{}, i18n.New(tag))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocalizerFrom returns the request Localizer, defaulting to Turkish.
func LocalizerFrom(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(localeKey{}).(*i18n.Localizer); ok && loc != nil {
		return loc
	}
	return i18n.New(language.Turkish)
}
