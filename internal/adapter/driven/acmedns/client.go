// Package acmedns implements the AcmeDNSClient port against the acme-dns
// HTTP API.
package acmedns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AcmeDNSClient = (*Client)(nil)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Client implements the driven.AcmeDNSClient port over the acme-dns REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the acme-dns instance at baseURL. The
// timeout bounds each API call end to end.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type registerRequest struct {
	AllowFrom []string `json:"allowfrom"`
}

type updateRequest struct {
	SubDomain string `json:"subdomain"`
	TXT       string `json:"txt"`
}

// Register creates a new acme-dns account. The request body carries the
// allowfrom whitelist only when one is configured; the server treats an
// absent body as an unrestricted account.
func (c *Client) Register(ctx context.Context, allowFrom []string) (model.CredentialRecord, error) {
	var body io.Reader
	if len(allowFrom) > 0 {
		payload, err := json.Marshal(registerRequest{AllowFrom: allowFrom})
		if err != nil {
			return model.CredentialRecord{}, &model.RegistrationError{Err: fmt.Errorf("encoding allowfrom list: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", body)
	if err != nil {
		return model.CredentialRecord{}, &model.RegistrationError{Err: fmt.Errorf("building register request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.CredentialRecord{}, &model.RegistrationError{Err: fmt.Errorf("calling register endpoint: %w", err)}
	}
	defer resp.Body.Close()

	slog.Debug("acme-dns api call", "endpoint", "/register", "status", resp.StatusCode)

	if resp.StatusCode != http.StatusCreated {
		return model.CredentialRecord{}, &model.RegistrationError{
			Status: resp.StatusCode,
			Body:   readErrorBody(resp.Body),
		}
	}

	var rec model.CredentialRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return model.CredentialRecord{}, &model.RegistrationError{Err: fmt.Errorf("decoding register response: %w", err)}
	}
	if err := rec.Validate(); err != nil {
		return model.CredentialRecord{}, &model.RegistrationError{Err: fmt.Errorf("register response: %w", err)}
	}

	return rec, nil
}

// UpdateTXT publishes the challenge token as the TXT value of the account's
// subdomain. The token is normalized and checked before any request is
// sent so a malformed token never reaches the server.
func (c *Client) UpdateTXT(ctx context.Context, rec model.CredentialRecord, token string) error {
	normalized, err := model.NormalizeChallengeToken(token)
	if err != nil {
		return &model.UpdateError{SubDomain: rec.SubDomain, Err: err}
	}

	payload, err := json.Marshal(updateRequest{SubDomain: rec.SubDomain, TXT: normalized})
	if err != nil {
		return &model.UpdateError{SubDomain: rec.SubDomain, Err: fmt.Errorf("encoding update request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update", bytes.NewReader(payload))
	if err != nil {
		return &model.UpdateError{SubDomain: rec.SubDomain, Err: fmt.Errorf("building update request: %w", err)}
	}
	req.Header.Set("X-Api-User", rec.Username)
	req.Header.Set("X-Api-Key", rec.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.UpdateError{SubDomain: rec.SubDomain, Err: fmt.Errorf("calling update endpoint: %w", err)}
	}
	defer resp.Body.Close()

	slog.Debug("acme-dns api call", "endpoint", "/update", "subdomain", rec.SubDomain, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return &model.UpdateError{
			SubDomain: rec.SubDomain,
			Status:    resp.StatusCode,
			Body:      readErrorBody(resp.Body),
		}
	}

	return nil
}

// Health probes the instance's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling health endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned HTTP %d", resp.StatusCode)
	}

	return nil
}

// readErrorBody drains up to maxErrorBody bytes for inclusion in errors.
func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
