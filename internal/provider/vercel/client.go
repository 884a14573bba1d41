// Package vercel wraps the Vercel REST API: projects, deployments, domains,
// and environment variables.
package vercel

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
	providerName   = "vercel"
	defaultBaseURL = "https://api.vercel.com"
)

// Client is a thin authenticated wrapper over the Vercel API.
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

// New constructs a Vercel client reading its token from the environment.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: provider.NewHTTPClient(),
		token:      provider.EnvToken("VERCEL_TOKEN"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	token := c.token()
	if token == "" {
		return &provider.ConfigError{Provider: providerName, Key: "VERCEL_TOKEN"}
	}
	return provider.Do(ctx, c.httpClient, providerName, provider.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: provider.BearerHeader(token),
		Body:    body,
	}, out)
}

// Project is the normalized subset of a Vercel project.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Framework string `json:"framework,omitempty"`
}

// ListProjects lists all projects. Read-only.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var payload struct {
		Projects []Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/v9/projects", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Projects, nil
}

// GetProjectInput addresses one project.
type GetProjectInput struct {
	ProjectID string `json:"projectId"`
}

func (in *GetProjectInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("projectId", in.ProjectID)
	return v
}

// GetProject fetches one project. Read-only.
func (c *Client) GetProject(ctx context.Context, in GetProjectInput) (Project, error) {
	var project Project
	path := fmt.Sprintf("/v9/projects/%s", url.PathEscape(in.ProjectID))
	if err := c.do(ctx, http.MethodGet, path, nil, &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// Deployment is the normalized subset of a Vercel deployment.
type Deployment struct {
	UID     string `json:"uid"`
	URL     string `json:"url"`
	State   string `json:"state"`
	Created int64  `json:"created"`
}

// ListDeploymentsInput scopes deployment listing to a project.
type ListDeploymentsInput struct {
	ProjectID string `json:"projectId"`
	Limit     int    `json:"limit,omitempty"`
}

func (in *ListDeploymentsInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("projectId", in.ProjectID)
	v.Min("limit", in.Limit, 0)
	return v
}

// ListDeployments lists recent deployments, newest first. Read-only.
func (c *Client) ListDeployments(ctx context.Context, in ListDeploymentsInput) ([]Deployment, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	path := fmt.Sprintf("/v6/deployments?projectId=%s&limit=%d", url.QueryEscape(in.ProjectID), limit)
	var payload struct {
		Deployments []Deployment `json:"deployments"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Deployments, nil
}

// GitSource pins a deployment to a repository ref.
type GitSource struct {
	Type   string `json:"type"`
	RepoID string `json:"repoId"`
	Ref    string `json:"ref,omitempty"`
}

// DeployInput triggers a new deployment.
type DeployInput struct {
	ProjectID string     `json:"projectId"`
	GitSource *GitSource `json:"gitSource,omitempty"`
}

func (in *DeployInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("projectId", in.ProjectID)
	if in.GitSource != nil {
		v.Require("gitSource.repoId", in.GitSource.RepoID)
		v.OneOf("gitSource.type", in.GitSource.Type, "github")
	}
	return v
}

// TriggerDeployment requests a new deployment. Mutating.
func (c *Client) TriggerDeployment(ctx context.Context, in DeployInput) (Deployment, error) {
	payload := map[string]any{"name": in.ProjectID}
	if in.GitSource != nil {
		src := *in.GitSource
		if src.Type == "" {
			src.Type = "github"
		}
		if src.Ref == "" {
			src.Ref = "main"
		}
		payload["gitSource"] = src
	}
	var deployment Deployment
	if err := c.do(ctx, http.MethodPost, "/v13/deployments", payload, &deployment); err != nil {
		return Deployment{}, err
	}
	return deployment, nil
}

// Domain is a custom domain attached to a project.
type Domain struct {
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// LinkDomainInput attaches a custom domain to a project.
type LinkDomainInput struct {
	ProjectID string `json:"projectId"`
	Domain    string `json:"domain"`
}

func (in *LinkDomainInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("projectId", in.ProjectID)
	v.Require("domain", in.Domain)
	return v
}

// LinkDomain adds a custom domain to a project. Mutating.
func (c *Client) LinkDomain(ctx context.Context, in LinkDomainInput) (Domain, error) {
	path := fmt.Sprintf("/v9/projects/%s/domains", url.PathEscape(in.ProjectID))
	var domain Domain
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"name": in.Domain}, &domain); err != nil {
		return Domain{}, err
	}
	return domain, nil
}

// ListDomainsInput scopes domain listing to a project.
type ListDomainsInput struct {
	ProjectID string `json:"projectId"`
}

func (in *ListDomainsInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("projectId", in.ProjectID)
	return v
}

// ListDomains lists domains attached to a project. Read-only.
func (c *Client) ListDomains(ctx context.Context, in ListDomainsInput) ([]Domain, error) {
	path := fmt.Sprintf("/v9/projects/%s/domains", url.PathEscape(in.ProjectID))
	var payload struct {
		Domains []Domain `json:"domains"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Domains, nil
}

// EnvVar is one project environment variable entry.
type EnvVar struct {
	ID     string   `json:"id,omitempty"`
	Key    string   `json:"key"`
	Type   string   `json:"type,omitempty"`
	Target []string `json:"target,omitempty"`
}

// GetEnvInput scopes env listing to a project.
type GetEnvInput struct {
	ProjectID string `json:"projectId"`
}

func (in *GetEnvInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("projectId", in.ProjectID)
	return v
}

// GetEnv lists environment variables for a project. Read-only.
func (c *Client) GetEnv(ctx context.Context, in GetEnvInput) ([]EnvVar, error) {
	path := fmt.Sprintf("/v9/projects/%s/env", url.PathEscape(in.ProjectID))
	var payload struct {
		Envs []EnvVar `json:"envs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Envs, nil
}

// SetEnvInput stores one encrypted environment variable.
type SetEnvInput struct {
	ProjectID string   `json:"projectId"`
	Key       string   `json:"key"`
	Value     string   `json:"value"`
	Target    []string `json:"target,omitempty"`
}

func (in *SetEnvInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("projectId", in.ProjectID)
	v.Require("key", in.Key)
	v.Require("value", in.Value)
	for i, target := range in.Target {
		v.OneOf(fmt.Sprintf("target[%d]", i), target, "production", "preview", "development")
	}
	return v
}

// SetEnv stores an encrypted environment variable. Mutating.
func (c *Client) SetEnv(ctx context.Context, in SetEnvInput) (EnvVar, error) {
	target := in.Target
	if len(target) == 0 {
		target = []string{"production"}
	}
	path := fmt.Sprintf("/v10/projects/%s/env", url.PathEscape(in.ProjectID))
	payload := map[string]any{
		"key":    in.Key,
		"value":  in.Value,
		"type":   "encrypted",
		"target": target,
	}
	var stored EnvVar
	if err := c.do(ctx, http.MethodPost, path, payload, &stored); err != nil {
		return EnvVar{}, err
	}
	return stored, nil
}
