// Package provider holds the HTTP plumbing shared by every external platform
// client: the error taxonomy, credential lookup, and the JSON request helper.
// Each platform package builds its typed operations on top of this.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultTimeout bounds every outbound provider call. An unbounded call is a
// defect.
const DefaultTimeout = 5 * time.Second

// Error is a non-success response from an external API. Calls are never
// retried automatically at this layer.
type Error struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("%s API error: %d %s", e.Provider, e.StatusCode, body)
}

// ConfigError reports a missing credential at the point of use. It never
// crashes the process; only the call that needed the credential fails.
type ConfigError struct {
	Provider string
	Key      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s not set", e.Provider, e.Key)
}

// TokenSource yields a credential for one call. Sources read configuration at
// call time, not at construction, so rotated credentials take effect on the
// next call.
type TokenSource func() string

// EnvToken returns a TokenSource backed by a process environment variable.
func EnvToken(key string) TokenSource {
	return func() string { return os.Getenv(key) }
}

// StaticToken returns a fixed-value TokenSource, for tests.
func StaticToken(value string) TokenSource {
	return func() string { return value }
}

// NewHTTPClient returns the default bounded client for provider calls.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// Request describes one provider HTTP call for Do.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	// Body is JSON-encoded when set and RawBody is nil.
	Body    any
	RawBody io.Reader
}

// Do performs a single bounded HTTP call and decodes a JSON response into out
// when out is non-nil. Non-2xx responses become *Error; transport failures
// propagate as-is for the caller to classify.
func Do(ctx context.Context, client *http.Client, providerName string, req Request, out any) error {
	if client == nil {
		client = NewHTTPClient()
	}
	var reader io.Reader
	if req.RawBody != nil {
		reader = req.RawBody
	} else if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if req.Body != nil && req.RawBody == nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", providerName, err)
	}
	return nil
}

// DoText is Do for endpoints that return plain text instead of JSON.
func DoText(ctx context.Context, client *http.Client, providerName string, req Request) (string, error) {
	if client == nil {
		client = NewHTTPClient()
	}
	var reader io.Reader
	if req.RawBody != nil {
		reader = req.RawBody
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if readErr != nil {
		return "", fmt.Errorf("read %s response: %w", providerName, readErr)
	}
	return string(body), nil
}

// BearerHeader builds an Authorization header for token-authenticated APIs.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
