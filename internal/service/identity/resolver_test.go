package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikrogrup/itbot/backend/internal/model/identity"
)

type stubTokens struct {
	token  string
	err    error
	scopes []string
	calls  int
}

func (s *stubTokens) AcquireTokenSilent(_ context.Context, scopes []string, _ identity.Account) (string, error) {
	s.calls++
	s.scopes = scopes
	return s.token, s.err
}

type stubDirectory struct {
	profile identity.DirectoryProfile
	err     error
	token   string
	calls   int
}

func (s *stubDirectory) Me(_ context.Context, token string) (identity.DirectoryProfile, error) {
	s.calls++
	s.token = token
	return s.profile, s.err
}

func signIn(name, login string) identity.SignInResult {
	return identity.SignInResult{
		Account:     identity.Account{HomeAccountID: "oid.tid", Username: login, Name: name},
		AccountName: name,
		LoginName:   login,
	}
}

func TestResolveEnrichesFromDirectory(t *testing.T) {
	tokens := &stubTokens{token: "access"}
	directory := &stubDirectory{profile: identity.DirectoryProfile{
		DisplayName:       "Ayşe Yılmaz",
		Mail:              "ayse@mikrogrup.com",
		UserPrincipalName: "ayse.yilmaz@mikrogrup.onmicrosoft.com",
		JobTitle:          "IT Specialist",
		Department:        "Bilgi İşlem",
	}}

	got := NewResolver(tokens, directory).Resolve(context.Background(), signIn("Ayşe", "ayse@login"))

	assert.Equal(t, identity.Principal{
		DisplayName: "Ayşe Yılmaz",
		Email:       "ayse@mikrogrup.com",
		JobTitle:    "IT Specialist",
		Department:  "Bilgi İşlem",
	}, got)
	assert.Equal(t, []string{"User.Read"}, tokens.scopes)
	assert.Equal(t, "access", directory.token)
}

func TestResolveFallsBackWhenTokenAcquisitionFails(t *testing.T) {
	tokens := &stubTokens{err: errors.New("consent revoked")}
	directory := &stubDirectory{}

	got := NewResolver(tokens, directory).Resolve(context.Background(), signIn("Mehmet Demir", "mehmet@mikrogrup.com"))

	assert.Equal(t, identity.Principal{DisplayName: "Mehmet Demir", Email: "mehmet@mikrogrup.com"}, got)
	assert.Equal(t, 1, tokens.calls, "token acquisition must not be retried")
	assert.Zero(t, directory.calls, "directory must be skipped without a token")
}

func TestResolveFallsBackOnEmptyToken(t *testing.T) {
	directory := &stubDirectory{}
	got := NewResolver(&stubTokens{}, directory).Resolve(context.Background(), signIn("", "user@mikrogrup.com"))

	assert.Equal(t, UnknownUser, got.DisplayName)
	assert.Equal(t, "user@mikrogrup.com", got.Email)
	assert.Zero(t, directory.calls)
}

func TestResolveFallsBackOnDirectory403(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"Authorization_RequestDenied"}}`))
	}))
	defer srv.Close()

	resolver := NewResolver(&stubTokens{token: "access"}, NewGraphClient(srv.URL, srv.Client()))
	got := resolver.Resolve(context.Background(), signIn("Zeynep Kaya", "zeynep@mikrogrup.com"))

	assert.Equal(t, identity.Principal{DisplayName: "Zeynep Kaya", Email: "zeynep@mikrogrup.com"}, got)
}

func TestResolveWithoutCollaborators(t *testing.T) {
	got := NewResolver(nil, nil).Resolve(context.Background(), signIn("", ""))

	assert.Equal(t, UnknownUser, got.DisplayName)
	assert.Equal(t, NoEmailAvailable, got.Email)
}

func TestFromProfilePrecedence(t *testing.T) {
	cases := []struct {
		name    string
		profile identity.DirectoryProfile
		want    identity.Principal
	}{
		{
			name:    "mail wins over principal name",
			profile: identity.DirectoryProfile{DisplayName: "A B", Mail: "mail@x", UserPrincipalName: "upn@x"},
			want:    identity.Principal{DisplayName: "A B", Email: "mail@x"},
		},
		{
			name:    "principal name when mail missing",
			profile: identity.DirectoryProfile{DisplayName: "A B", UserPrincipalName: "upn@x"},
			want:    identity.Principal{DisplayName: "A B", Email: "upn@x"},
		},
		{
			name:    "email marker",
			profile: identity.DirectoryProfile{DisplayName: "A B"},
			want:    identity.Principal{DisplayName: "A B", Email: NoEmailAvailable},
		},
		{
			name:    "given and surname joined",
			profile: identity.DirectoryProfile{GivenName: "Ali", Surname: "Veli", Mail: "ali@x"},
			want:    identity.Principal{DisplayName: "Ali Veli", Email: "ali@x"},
		},
		{
			name:    "given name alone",
			profile: identity.DirectoryProfile{GivenName: "Ali", Mail: "ali@x"},
			want:    identity.Principal{DisplayName: "Ali", Email: "ali@x"},
		},
		{
			name:    "surname alone is not enough",
			profile: identity.DirectoryProfile{Surname: "Veli", Mail: "ali@x"},
			want:    identity.Principal{DisplayName: UnknownUser, Email: "ali@x"},
		},
		{
			name:    "optional fields copied",
			profile: identity.DirectoryProfile{DisplayName: "A", Mail: "a@x", JobTitle: "Dev", Department: "IT"},
			want:    identity.Principal{DisplayName: "A", Email: "a@x", JobTitle: "Dev", Department: "IT"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromProfile(tc.profile))
		})
	}
}

func TestFromSignInNeverEmpty(t *testing.T) {
	for _, result := range []identity.SignInResult{
		signIn("", ""),
		signIn("   ", "login@x"),
		signIn("Name", ""),
	} {
		got := FromSignIn(result)
		require.NotEmpty(t, got.DisplayName)
		require.NotEmpty(t, got.Email)
		assert.Empty(t, got.JobTitle)
		assert.Empty(t, got.Department)
	}
}

func TestThenShortCircuits(t *testing.T) {
	secondCalled := false
	first := step[int, int](func(context.Context, int) (int, error) { return 0, errors.New("boom") })
	second := step[int, string](func(context.Context, int) (string, error) {
		secondCalled = true
		return "", nil
	})

	_, err := then(first, second)(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, secondCalled)
}
