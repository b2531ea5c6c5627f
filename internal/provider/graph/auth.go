package graph

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tokenExpiryBuffer is subtracted from the reported lifetime so a token is
// never used in the last minutes before it expires.
const tokenExpiryBuffer = 5 * time.Minute

// graphScope requests the application permissions granted to the client.
const graphScope = "https://graph.microsoft.com/.default"

// tokenCache holds one client-credentials access token and renews it on
// expiry or on demand.
type tokenCache struct {
	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	creds       clientcredentials.Config
	httpClient  *http.Client
}

func newTokenCache(tokenURL, clientID, clientSecret string, httpClient *http.Client) *tokenCache {
	return &tokenCache{
		creds: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

// Token returns the cached token, fetching a new one when it is missing
// or expired.
func (tc *tokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.accessToken != "" && (tc.expiresAt.IsZero() || time.Now().Before(tc.expiresAt)) {
		return tc.accessToken, nil
	}

	return tc.fetch(ctx)
}

// Invalidate drops the cached token and fetches a new one.
func (tc *tokenCache) Invalidate(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.accessToken = ""
	tc.expiresAt = time.Time{}

	return tc.fetch(ctx)
}

// fetch requests a token from the identity endpoint. The caller must hold tc.mu.
func (tc *tokenCache) fetch(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, tc.httpClient)

	tok, err := tc.creds.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	tc.accessToken = tok.AccessToken
	tc.expiresAt = time.Time{}
	if !tok.Expiry.IsZero() {
		tc.expiresAt = tok.Expiry.Add(-tokenExpiryBuffer)
	}

	return tc.accessToken, nil
}
