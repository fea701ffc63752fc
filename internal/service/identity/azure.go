package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/mikrogrup/itbot/backend/internal/model/identity"
)

// LoginScopes are requested at sign-in so the cached token can later be refreshed silently.
var LoginScopes = []string{"openid", "profile", "email", "offline_access", "User.Read"}

var (
	ErrNoCachedToken  = errors.New("account has no cached token")
	ErrMissingIDToken = errors.New("token response carried no id_token")
)

// SignInErrorKind classifies why a sign-in did not complete.
type SignInErrorKind string

const (
	SignInCancelled       SignInErrorKind = "cancelled"
	SignInConsentRequired SignInErrorKind = "consent_required"
	SignInInvalidState    SignInErrorKind = "invalid_state"
	SignInTransport       SignInErrorKind = "transport"
)

// SignInError is surfaced to the login page as a localized alert.
type SignInError struct {
	Kind        SignInErrorKind
	Code        string
	Description string
	Err         error
}

func (e *SignInError) Error() string {
	msg := fmt.Sprintf("sign-in %s", e.Kind)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SignInError) Unwrap() error {
	return e.Err
}

// CallbackError inspects the redirect query and returns a SignInError when the identity
// provider reported a failure, or nil when the callback carries a code.
func CallbackError(query url.Values) *SignInError {
	code := query.Get("error")
	if code == "" {
		if query.Get("code") == "" {
			return &SignInError{Kind: SignInTransport, Code: "missing_code"}
		}
		return nil
	}

	kind := SignInTransport
	switch code {
	case "access_denied":
		kind = SignInCancelled
	case "consent_required", "interaction_required", "login_required":
		kind = SignInConsentRequired
	}
	return &SignInError{Kind: kind, Code: code, Description: query.Get("error_description")}
}

type idTokenClaims struct {
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	UPN               string `json:"upn"`
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	jwt.RegisteredClaims
}

// AzureProvider runs the authorization-code flow against Azure AD and acquires tokens
// silently from the cached refresh token afterwards.
type AzureProvider struct {
	oauth      oauth2.Config
	logoutURL  string
	httpClient *http.Client
}

// AzureOptions identifies the app registration and its endpoints.
type AzureOptions struct {
	ClientID              string
	ClientSecret          string
	TenantID              string
	RedirectURL           string
	AuthorityHost         string
	PostLogoutRedirectURL string
}

// NewAzureProvider builds the provider from opts. httpClient may be nil.
func NewAzureProvider(cfg AzureOptions, httpClient *http.Client) *AzureProvider {
	base := cfg.AuthorityHost + "/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0"

	logout := base + "/logout"
	if cfg.PostLogoutRedirectURL != "" {
		logout += "?" + url.Values{"post_logout_redirect_uri": {cfg.PostLogoutRedirectURL}}.Encode()
	}

	return &AzureProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), LoginScopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/authorize",
				TokenURL:  base + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logoutURL:  logout,
		httpClient: httpClient,
	}
}

// NewVerifier returns a fresh PKCE verifier.
func (p *AzureProvider) NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL returns the authorize redirect for state with an S256 challenge of verifier.
func (p *AzureProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("response_mode", "query"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange redeems code and reads the sign-in claims from the returned id_token.
func (p *AzureProvider) Exchange(ctx context.Context, code, verifier string) (identity.SignInResult, error) {
	token, err := p.oauth.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return identity.SignInResult{}, &SignInError{Kind: classifyTokenError(err), Err: err}
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return identity.SignInResult{}, &SignInError{Kind: SignInTransport, Err: ErrMissingIDToken}
	}

	// The id_token comes straight from the token endpoint over TLS, so its claims are read
	// without a signature check.
	var claims idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, &claims); err != nil {
		return identity.SignInResult{}, &SignInError{Kind: SignInTransport, Err: fmt.Errorf("failed to parse id_token: %w", err)}
	}
	if len(claims.Audience) > 0 && !slices.Contains([]string(claims.Audience), p.oauth.ClientID) {
		return identity.SignInResult{}, &SignInError{Kind: SignInTransport, Err: fmt.Errorf("id_token audience %v does not match client", claims.Audience)}
	}

	loginName := firstNonEmpty(claims.PreferredUsername, claims.Email, claims.UPN)
	objectID := firstNonEmpty(claims.ObjectID, claims.Subject)

	account := identity.Account{
		HomeAccountID: strings.Trim(objectID+"."+claims.TenantID, "."),
		TenantID:      claims.TenantID,
		Username:      loginName,
		Name:          strings.TrimSpace(claims.Name),
		Token:         token,
	}

	return identity.SignInResult{
		Account:     account,
		AccountName: account.Name,
		LoginName:   loginName,
	}, nil
}

// AcquireTokenSilent returns an access token for account, refreshing the cached token when it
// has expired. It never prompts and never retries. A refresh carries no scope parameter, so the
// token keeps the sign-in scopes; scopes must therefore be a subset of LoginScopes.
func (p *AzureProvider) AcquireTokenSilent(ctx context.Context, scopes []string, account identity.Account) (string, error) {
	if account.Token == nil {
		return "", ErrNoCachedToken
	}
	for _, scope := range scopes {
		if !slices.Contains(LoginScopes, scope) {
			return "", fmt.Errorf("scope %q was not granted at sign-in", scope)
		}
	}

	token, err := p.oauth.TokenSource(p.clientContext(ctx), account.Token).Token()
	if err != nil {
		return "", fmt.Errorf("silent token acquisition failed: %w", err)
	}
	return token.AccessToken, nil
}

// LogoutURL returns the identity provider's end-session URL.
func (p *AzureProvider) LogoutURL() string {
	return p.logoutURL
}

func (p *AzureProvider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func classifyTokenError(err error) SignInErrorKind {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "consent_required", "interaction_required":
			return SignInConsentRequired
		case "access_denied":
			return SignInCancelled
		}
	}
	return SignInTransport
}
