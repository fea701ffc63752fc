package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/mikrogrup/itbot/backend/internal/model/identity"
)

const testClientID = "client-123"

func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func newTokenServer(t *testing.T, handle func(form url.Values) (int, map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/tenant-1/oauth2/v2.0/token"), "unexpected path %s", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		status, body := handle(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newTestProvider(srv *httptest.Server) *AzureProvider {
	return NewAzureProvider(AzureOptions{
		ClientID:              testClientID,
		TenantID:              "tenant-1",
		RedirectURL:           "http://localhost:8080/auth/callback",
		AuthorityHost:         srv.URL,
		PostLogoutRedirectURL: "http://localhost:8080/login",
	}, srv.Client())
}

func TestAuthCodeURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	p := newTestProvider(srv)

	verifier := p.NewVerifier()
	raw := p.AuthCodeURL("state-1", verifier)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "/tenant-1/oauth2/v2.0/authorize", u.Path)
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	assert.Equal(t, "openid profile email offline_access User.Read", q.Get("scope"))
}

func TestExchangeBuildsSignInResult(t *testing.T) {
	idToken := signedIDToken(t, jwt.MapClaims{
		"aud":                testClientID,
		"name":               "Elif Şahin",
		"preferred_username": "elif@mikrogrup.com",
		"oid":                "object-1",
		"tid":                "tenant-1",
	})

	srv := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "the-code", form.Get("code"))
		assert.Equal(t, "the-verifier", form.Get("code_verifier"))
		return http.StatusOK, map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"id_token":      idToken,
		}
	})
	defer srv.Close()

	result, err := newTestProvider(srv).Exchange(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)

	assert.Equal(t, "Elif Şahin", result.AccountName)
	assert.Equal(t, "elif@mikrogrup.com", result.LoginName)
	assert.Equal(t, "object-1.tenant-1", result.Account.HomeAccountID)
	require.NotNil(t, result.Account.Token)
	assert.Equal(t, "at-1", result.Account.Token.AccessToken)
}

func TestExchangeRejectsForeignAudience(t *testing.T) {
	idToken := signedIDToken(t, jwt.MapClaims{"aud": "someone-else", "preferred_username": "x@y"})
	srv := newTokenServer(t, func(url.Values) (int, map[string]any) {
		return http.StatusOK, map[string]any{"access_token": "at", "token_type": "Bearer", "id_token": idToken}
	})
	defer srv.Close()

	_, err := newTestProvider(srv).Exchange(context.Background(), "code", "verifier")
	require.Error(t, err)
}

func TestExchangeMissingIDToken(t *testing.T) {
	srv := newTokenServer(t, func(url.Values) (int, map[string]any) {
		return http.StatusOK, map[string]any{"access_token": "at", "token_type": "Bearer"}
	})
	defer srv.Close()

	_, err := newTestProvider(srv).Exchange(context.Background(), "code", "verifier")
	assert.True(t, errors.Is(err, ErrMissingIDToken))
}

func TestExchangeClassifiesConsentErrors(t *testing.T) {
	srv := newTokenServer(t, func(url.Values) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{"error": "consent_required", "error_description": "AADSTS65001"}
	})
	defer srv.Close()

	_, err := newTestProvider(srv).Exchange(context.Background(), "code", "verifier")

	var signInErr *SignInError
	require.True(t, errors.As(err, &signInErr))
	assert.Equal(t, SignInConsentRequired, signInErr.Kind)
}

func TestAcquireTokenSilentRefreshesExpiredToken(t *testing.T) {
	srv := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		assert.Equal(t, "refresh_token", form.Get("grant_type"))
		assert.Equal(t, "rt-1", form.Get("refresh_token"))
		return http.StatusOK, map[string]any{"access_token": "at-2", "token_type": "Bearer", "expires_in": 3600}
	})
	defer srv.Close()

	account := identity.Account{Token: &oauth2.Token{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(-time.Minute),
	}}

	token, err := newTestProvider(srv).AcquireTokenSilent(context.Background(), ProfileReadScopes, account)
	require.NoError(t, err)
	assert.Equal(t, "at-2", token)
}

func TestAcquireTokenSilentUsesValidCachedToken(t *testing.T) {
	srv := newTokenServer(t, func(url.Values) (int, map[string]any) {
		t.Error("token endpoint must not be called for a valid token")
		return http.StatusInternalServerError, map[string]any{}
	})
	defer srv.Close()

	account := identity.Account{Token: &oauth2.Token{AccessToken: "at-1", Expiry: time.Now().Add(time.Hour)}}

	token, err := newTestProvider(srv).AcquireTokenSilent(context.Background(), ProfileReadScopes, account)
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)
}

func TestAcquireTokenSilentRejectsScopesOutsideSignIn(t *testing.T) {
	srv := newTokenServer(t, func(url.Values) (int, map[string]any) {
		t.Error("token endpoint must not be called for an ungranted scope")
		return http.StatusInternalServerError, map[string]any{}
	})
	defer srv.Close()

	account := identity.Account{Token: &oauth2.Token{AccessToken: "at-1", RefreshToken: "rt-1", Expiry: time.Now().Add(-time.Minute)}}

	_, err := newTestProvider(srv).AcquireTokenSilent(context.Background(), []string{"Mail.Read"}, account)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mail.Read")
}

func TestLoginScopesCoverProfileRead(t *testing.T) {
	for _, scope := range ProfileReadScopes {
		assert.Contains(t, LoginScopes, scope)
	}
}

func TestAcquireTokenSilentWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestProvider(srv).AcquireTokenSilent(context.Background(), ProfileReadScopes, identity.Account{})
	assert.ErrorIs(t, err, ErrNoCachedToken)
}

func TestCallbackError(t *testing.T) {
	cases := []struct {
		query url.Values
		want  SignInErrorKind
	}{
		{url.Values{"error": {"access_denied"}}, SignInCancelled},
		{url.Values{"error": {"consent_required"}}, SignInConsentRequired},
		{url.Values{"error": {"interaction_required"}}, SignInConsentRequired},
		{url.Values{"error": {"server_error"}}, SignInTransport},
		{url.Values{}, SignInTransport},
	}

	for _, tc := range cases {
		got := CallbackError(tc.query)
		require.NotNil(t, got, "query %v", tc.query)
		assert.Equal(t, tc.want, got.Kind)
	}

	assert.Nil(t, CallbackError(url.Values{"code": {"abc"}, "state": {"s"}}))
}

func TestLogoutURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	u, err := url.Parse(newTestProvider(srv).LogoutURL())
	require.NoError(t, err)
	assert.Equal(t, "/tenant-1/oauth2/v2.0/logout", u.Path)
	assert.Equal(t, "http://localhost:8080/login", u.Query().Get("post_logout_redirect_uri"))
}
