package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/mikrogrup/itbot/backend/internal/model/identity"
)

// DirectoryError reports a non-2xx answer from the directory endpoint.
type DirectoryError struct {
	StatusCode int
	Status     string
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory lookup failed: %s", e.Status)
}

// GraphClient reads the signed-in user's profile from the Microsoft Graph /me endpoint.
type GraphClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewGraphClient returns a client for endpoint. A nil httpClient gets a 15s timeout client.
func NewGraphClient(endpoint string, httpClient *http.Client) *GraphClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &GraphClient{endpoint: endpoint, httpClient: httpClient}
}

// Me performs GET /me with the bearer token.
func (c *GraphClient) Me(ctx context.Context, token string) (identity.DirectoryProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return identity.DirectoryProfile{}, fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return identity.DirectoryProfile{}, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return identity.DirectoryProfile{}, &DirectoryError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var profile identity.DirectoryProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return identity.DirectoryProfile{}, fmt.Errorf("failed to decode directory profile: %w", err)
	}
	return profile, nil
}
