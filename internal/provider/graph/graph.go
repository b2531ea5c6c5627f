// Package graph implements a Provider that sends mail from a Microsoft 365
// mailbox through the Graph API.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shineum/mailbatch/internal/email"
	"github.com/shineum/mailbatch/internal/provider"
)

// Config holds the configuration for creating a Provider.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
}

// Provider sends mail as Sender using OAuth2 client credentials.
type Provider struct {
	sender     string
	graphURL   string
	httpClient *http.Client
	token      *tokenCache
}

// New creates a new Provider with the given configuration.
func New(cfg Config) *Provider {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		url.PathEscape(cfg.TenantID),
	)
	graphURL := fmt.Sprintf(
		"https://graph.microsoft.com/v1.0/users/%s/sendMail",
		url.PathEscape(cfg.Sender),
	)

	return newWithOverrides(cfg, graphURL, tokenURL, &http.Client{Timeout: 30 * time.Second})
}

// newWithOverrides creates a Provider with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg Config, graphURL, tokenURL string, client *http.Client) *Provider {
	return &Provider{
		sender:     cfg.Sender,
		graphURL:   graphURL,
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Send submits msg through sendMail. A 401 response triggers one token
// renewal and a second attempt; every other failure is returned as is.
func (g *Provider) Send(ctx context.Context, msg *email.Email) error {
	reqBody, err := buildSendMailRequest(msg)
	if err != nil {
		return err
	}
	bodyJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	err = g.doSendRequest(ctx, bodyJSON)

	var sendErr *sendError
	if errors.As(err, &sendErr) && sendErr.statusCode == http.StatusUnauthorized {
		slog.Info("renewing Graph API token after 401", "sender", g.sender)
		if _, tokenErr := g.token.Invalidate(ctx); tokenErr != nil {
			return fmt.Errorf("%w: token renewal failed: %v", provider.ErrUnavailable, tokenErr)
		}
		err = g.doSendRequest(ctx, bodyJSON)
	}

	return err
}

// Name returns the provider name.
func (g *Provider) Name() string {
	return "msgraph"
}

// doSendRequest performs a single POST to the sendMail endpoint.
func (g *Provider) doSendRequest(ctx context.Context, bodyJSON []byte) error {
	token, err := g.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get access token: %v", provider.ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.graphURL, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: HTTP request failed: %v", provider.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	// sendMail answers 202 Accepted
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var errResp graphErrorResponse
	if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
		return &sendError{statusCode: resp.StatusCode, code: errResp.Error.Code, message: errResp.Error.Message}
	}

	return &sendError{statusCode: resp.StatusCode, message: string(body)}
}

// sendError is a non-success response from sendMail.
type sendError struct {
	statusCode int
	code       string
	message    string
}

func (e *sendError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("Graph API error (HTTP %d, %s): %s", e.statusCode, e.code, e.message)
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.statusCode, e.message)
}

func (e *sendError) Unwrap() error {
	return provider.ErrUnavailable
}
