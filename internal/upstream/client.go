// Package upstream builds HTTP clients for the external collaborators (question
// generator, grader, explanation service).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/gokatarajesh/cyberhoot/internal/auth"
	"github.com/gokatarajesh/cyberhoot/internal/metrics"
)

const (
	defaultTimeout = 6 * time.Second
	maxErrorBody   = 512

	// HeaderUsername carries the participant a call is made for.
	HeaderUsername = "X-Cyberhoot-User"
)

// OAuth2Config enables the client-credentials grant for a collaborator.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (c OAuth2Config) enabled() bool {
	return c.TokenURL != "" && c.ClientID != ""
}

// Config describes one collaborator endpoint.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	OAuth2  OAuth2Config
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Upstream   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Upstream, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the call may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ErrNotConfigured is returned by clients whose base URL is empty.
var ErrNotConfigured = errors.New("upstream not configured")

// Client posts JSON to a collaborator.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	oauth   bool
	http    *http.Client
}

// New builds a client. With OAuth2 configured the token source's transport signs
// every request; otherwise the API key, or the caller's own token, is sent as a
// bearer token.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.OAuth2.enabled() {
		cc := clientcredentials.Config{
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			TokenURL:     cfg.OAuth2.TokenURL,
			Scopes:       cfg.OAuth2.Scopes,
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = timeout
	}

	return &Client{
		name:    cfg.Name,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		oauth:   cfg.OAuth2.enabled(),
		http:    httpClient,
	}
}

// Configured reports whether the client has an endpoint.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Name is the collaborator label used in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// PostJSON sends in to path and decodes the response body into out (when non-nil).
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	if !c.Configured() {
		return fmt.Errorf("%s: %w", c.name, ErrNotConfigured)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(ctx, req)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamFailures.WithLabelValues(c.name).Inc()
		return fmt.Errorf("call %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.UpstreamFailures.WithLabelValues(c.name).Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Upstream: c.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamFailures.WithLabelValues(c.name).Inc()
		return fmt.Errorf("decode %s payload: %w", c.name, err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) {
	creds, hasCreds := auth.CredentialsFrom(ctx)
	if hasCreds && creds.Username != "" {
		req.Header.Set(HeaderUsername, creds.Username)
	}
	switch {
	case c.oauth:
	case c.apiKey != "":
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	case hasCreds && creds.Token != "":
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
}
