package identity

import "golang.org/x/oauth2"

// Principal is the signed-in user as known to the rest of the service.
type Principal struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	JobTitle    string `json:"jobTitle,omitempty"`
	Department  string `json:"department,omitempty"`
}

// Account is the identity-provider account a sign-in produced.
type Account struct {
	HomeAccountID string `json:"homeAccountId"`
	TenantID      string `json:"tenantId"`
	Username      string `json:"username"`
	Name          string `json:"name,omitempty"`

	// Token is the cached token set used for silent acquisition.
	Token *oauth2.Token `json:"-"`
}

// SignInResult carries the minimal claims of a successful sign-in.
type SignInResult struct {
	Account     Account
	AccountName string
	LoginName   string
}

// DirectoryProfile mirrors the JSON object returned by the directory /me endpoint.
type DirectoryProfile struct {
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	JobTitle          string `json:"jobTitle"`
	Department        string `json:"department"`
}
