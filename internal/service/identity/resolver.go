package identity

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/mikrogrup/itbot/backend/internal/model/identity"
)

// Markers used when the directory and the sign-in claims carry nothing better.
const (
	UnknownUser      = "Unknown User"
	NoEmailAvailable = "No email available"
)

// ProfileReadScopes is the minimal permission needed to read the signed-in user's profile.
var ProfileReadScopes = []string{"User.Read"}

var errEmptyToken = errors.New("token acquisition returned an empty token")

// TokenAcquirer obtains a bearer token for account without user interaction.
type TokenAcquirer interface {
	AcquireTokenSilent(ctx context.Context, scopes []string, account identity.Account) (string, error)
}

// DirectoryLookup fetches the profile of the token's owner.
type DirectoryLookup interface {
	Me(ctx context.Context, token string) (identity.DirectoryProfile, error)
}

// Resolver turns a sign-in result into a Principal, enriching it from the directory when it
// can and degrading to the sign-in claims when it cannot.
type Resolver struct {
	tokens    TokenAcquirer
	directory DirectoryLookup
	scopes    []string
}

// NewResolver creates a Resolver. scopes defaults to ProfileReadScopes.
func NewResolver(tokens TokenAcquirer, directory DirectoryLookup, scopes ...string) *Resolver {
	if len(scopes) == 0 {
		scopes = ProfileReadScopes
	}
	return &Resolver{
		tokens:    tokens,
		directory: directory,
		scopes:    append([]string(nil), scopes...),
	}
}

// Resolve always returns a usable Principal; enrichment failures are logged and absorbed.
func (r *Resolver) Resolve(ctx context.Context, result identity.SignInResult) identity.Principal {
	enrich := then(r.acquireToken, r.lookupProfile)
	resolve := orElse(enrich, FromSignIn, func(err error) {
		log.Printf("[identity] directory enrichment failed for %s, using sign-in claims: %v", result.LoginName, err)
	})
	return resolve(ctx, result)
}

func (r *Resolver) acquireToken(ctx context.Context, result identity.SignInResult) (string, error) {
	if r.tokens == nil {
		return "", errors.New("no token acquirer configured")
	}
	token, err := r.tokens.AcquireTokenSilent(ctx, r.scopes, result.Account)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errEmptyToken
	}
	return token, nil
}

func (r *Resolver) lookupProfile(ctx context.Context, token string) (identity.Principal, error) {
	if r.directory == nil {
		return identity.Principal{}, errors.New("no directory lookup configured")
	}
	profile, err := r.directory.Me(ctx, token)
	if err != nil {
		return identity.Principal{}, err
	}
	return FromProfile(profile), nil
}

// FromProfile maps a directory profile using the mail → login name → marker precedence for
// the email and display name → given+surname → given → marker for the display name.
func FromProfile(profile identity.DirectoryProfile) identity.Principal {
	given := strings.TrimSpace(profile.GivenName)
	surname := strings.TrimSpace(profile.Surname)

	var composed string
	if given != "" && surname != "" {
		composed = given + " " + surname
	}

	return identity.Principal{
		DisplayName: firstNonEmpty(profile.DisplayName, composed, given, UnknownUser),
		Email:       firstNonEmpty(profile.Mail, profile.UserPrincipalName, NoEmailAvailable),
		JobTitle:    strings.TrimSpace(profile.JobTitle),
		Department:  strings.TrimSpace(profile.Department),
	}
}

// FromSignIn builds the minimal Principal carried by the sign-in claims alone.
func FromSignIn(result identity.SignInResult) identity.Principal {
	return identity.Principal{
		DisplayName: firstNonEmpty(result.AccountName, UnknownUser),
		Email:       firstNonEmpty(result.LoginName, NoEmailAvailable),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// step is one fallible stage of the resolution pipeline.
type step[In, Out any] func(ctx context.Context, in In) (Out, error)

// then runs second on the output of first, short-circuiting on the first error.
func then[A, B, C any](first step[A, B], second step[B, C]) step[A, C] {
	return func(ctx context.Context, in A) (C, error) {
		mid, err := first(ctx, in)
		if err != nil {
			var zero C
			return zero, err
		}
		return second(ctx, mid)
	}
}

// orElse turns a fallible step into a total one by computing fallback from the original input.
func orElse[In, Out any](s step[In, Out], fallback func(In) Out, onErr func(error)) func(context.Context, In) Out {
	return func(ctx context.Context, in In) Out {
		out, err := s(ctx, in)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return fallback(in)
		}
		return out
	}
}
