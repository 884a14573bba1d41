// Package render wraps the Render REST API: services, deploys, and
// environment variables.
package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/InnerAnimal/meaux-infra/internal/provider"
	"github.com/InnerAnimal/meaux-infra/internal/validate"
)

const (
	providerName   = "render"
	defaultBaseURL = "https://api.render.com/v1"
)

// Client is a thin authenticated wrapper over the Render API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      provider.TokenSource
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithBaseURL points the client at a different API root, for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithToken overrides the credential source.
func WithToken(source provider.TokenSource) Option {
	return func(c *Client) {
		if source != nil {
			c.token = source
		}
	}
}

// New constructs a Render client reading its key from the environment.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: provider.NewHTTPClient(),
		token:      provider.EnvToken("RENDER_API_KEY"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	key := c.token()
	if key == "" {
		return &provider.ConfigError{Provider: providerName, Key: "RENDER_API_KEY"}
	}
	return provider.Do(ctx, c.httpClient, providerName, provider.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: provider.BearerHeader(key),
		Body:    body,
	}, out)
}

// Service is the normalized subset of a Render service.
type Service struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// ListServices lists all services visible to the key. Read-only.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var items []struct {
		Service Service `json:"service"`
	}
	if err := c.do(ctx, http.MethodGet, "/services", nil, &items); err != nil {
		return nil, err
	}
	services := make([]Service, 0, len(items))
	for _, item := range items {
		services = append(services, item.Service)
	}
	return services, nil
}

// GetServiceInput addresses one service.
type GetServiceInput struct {
	ServiceID string `json:"serviceId"`
}

func (in *GetServiceInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("serviceId", in.ServiceID)
	return v
}

// GetService fetches one service. Read-only.
func (c *Client) GetService(ctx context.Context, in GetServiceInput) (Service, error) {
	path := fmt.Sprintf("/services/%s", url.PathEscape(in.ServiceID))
	var payload struct {
		Service Service `json:"service"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return Service{}, err
	}
	return payload.Service, nil
}

// Deploy is the normalized subset of a Render deploy.
type Deploy struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// ListDeploysInput scopes deploy listing to a service.
type ListDeploysInput struct {
	ServiceID string `json:"serviceId"`
	Limit     int    `json:"limit,omitempty"`
}

func (in *ListDeploysInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("serviceId", in.ServiceID)
	v.Min("limit", in.Limit, 0)
	return v
}

// ListDeploys lists recent deploys for a service. Read-only.
func (c *Client) ListDeploys(ctx context.Context, in ListDeploysInput) ([]Deploy, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	path := fmt.Sprintf("/services/%s/deploys?limit=%d", url.PathEscape(in.ServiceID), limit)
	var items []struct {
		Deploy Deploy `json:"deploy"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	deploys := make([]Deploy, 0, len(items))
	for _, item := range items {
		deploys = append(deploys, item.Deploy)
	}
	return deploys, nil
}

// TriggerDeployInput starts a deploy for one service.
type TriggerDeployInput struct {
	ServiceID string `json:"serviceId"`
}

func (in *TriggerDeployInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("serviceId", in.ServiceID)
	return v
}

// TriggerDeploy starts a new deploy. Mutating.
func (c *Client) TriggerDeploy(ctx context.Context, in TriggerDeployInput) (Deploy, error) {
	path := fmt.Sprintf("/services/%s/deploys", url.PathEscape(in.ServiceID))
	var deploy Deploy
	if err := c.do(ctx, http.MethodPost, path, nil, &deploy); err != nil {
		return Deploy{}, err
	}
	return deploy, nil
}

// EnvVar is one service environment variable.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetEnvInput scopes env listing to a service.
type GetEnvInput struct {
	ServiceID string `json:"serviceId"`
}

func (in *GetEnvInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("serviceId", in.ServiceID)
	return v
}

// GetEnv lists environment variables for a service. Read-only.
func (c *Client) GetEnv(ctx context.Context, in GetEnvInput) ([]EnvVar, error) {
	path := fmt.Sprintf("/services/%s/env-vars", url.PathEscape(in.ServiceID))
	var items []struct {
		EnvVar EnvVar `json:"envVar"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	vars := make([]EnvVar, 0, len(items))
	for _, item := range items {
		vars = append(vars, item.EnvVar)
	}
	return vars, nil
}

// SetEnvInput stores one environment variable for a service.
type SetEnvInput struct {
	ServiceID string `json:"serviceId"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

func (in *SetEnvInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("serviceId", in.ServiceID)
	v.Require("key", in.Key)
	v.Require("value", in.Value)
	return v
}

// SetEnv replaces one environment variable. Mutating.
func (c *Client) SetEnv(ctx context.Context, in SetEnvInput) ([]EnvVar, error) {
	path := fmt.Sprintf("/services/%s/env-vars", url.PathEscape(in.ServiceID))
	payload := []EnvVar{{Key: in.Key, Value: in.Value}}
	var items []struct {
		EnvVar EnvVar `json:"envVar"`
	}
	if err := c.do(ctx, http.MethodPut, path, payload, &items); err != nil {
		return nil, err
	}
	vars := make([]EnvVar, 0, len(items))
	for _, item := range items {
		vars = append(vars, item.EnvVar)
	}
	return vars, nil
}
