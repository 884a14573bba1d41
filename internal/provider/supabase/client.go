// Package supabase wraps the Supabase PostgREST interface for generic table
// access: query, insert, update, delete, and row counts.
package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/InnerAnimal/meaux-infra/internal/provider"
	"github.com/InnerAnimal/meaux-infra/internal/validate"
)

const providerName = "supabase"

// Credentials resolves the project URL and service-role key per call.
type Credentials func() (url, key string)

// EnvCredentials reads SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY.
func EnvCredentials() (string, string) {
	return os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
}

// Client is a thin authenticated wrapper over PostgREST.
type Client struct {
	httpClient  *http.Client
	credentials Credentials
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

// WithCredentials overrides the credential source.
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		if creds != nil {
			c.credentials = creds
		}
	}
}

// New constructs a Supabase client reading credentials from the environment.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:  provider.NewHTTPClient(),
		credentials: EnvCredentials,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Row is a generic table row. Table shape is caller-defined, so rows stay
// dynamic here; every other provider returns typed results.
type Row map[string]any

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	base, key := c.credentials()
	if strings.TrimSpace(base) == "" || strings.TrimSpace(key) == "" {
		return &provider.ConfigError{Provider: providerName, Key: "SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY"}
	}
	headers := provider.BearerHeader(key)
	headers.Set("apikey", key)
	headers.Set("Prefer", "return=representation")
	return provider.Do(ctx, c.httpClient, providerName, provider.Request{
		Method:  method,
		URL:     strings.TrimRight(base, "/") + "/rest/v1" + path,
		Headers: headers,
		Body:    body,
	}, out)
}

// QueryInput selects rows from one table. Filter uses PostgREST syntax,
// e.g. "status=eq.active".
type QueryInput struct {
	Table  string `json:"table"`
	Select string `json:"select,omitempty"`
	Filter string `json:"filter,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (in *QueryInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("table", in.Table)
	v.Min("limit", in.Limit, 0)
	return v
}

// Query selects rows from a table. Read-only.
func (c *Client) Query(ctx context.Context, in QueryInput) ([]Row, error) {
	sel := in.Select
	if sel == "" {
		sel = "*"
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	path := fmt.Sprintf("/%s?select=%s&limit=%d", url.PathEscape(in.Table), url.QueryEscape(sel), limit)
	if in.Filter != "" {
		path += "&" + in.Filter
	}
	var rows []Row
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertInput adds one row to a table.
type InsertInput struct {
	Table string `json:"table"`
	Data  Row    `json:"data"`
}

func (in *InsertInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("table", in.Table)
	if len(in.Data) == 0 {
		v.Add("data", "is required")
	}
	return v
}

// Insert adds a row. Mutating.
func (c *Client) Insert(ctx context.Context, in InsertInput) ([]Row, error) {
	var rows []Row
	if err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(in.Table), in.Data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateInput patches rows matched by a PostgREST filter.
type UpdateInput struct {
	Table  string `json:"table"`
	Filter string `json:"filter"`
	Data   Row    `json:"data"`
}

func (in *UpdateInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("table", in.Table)
	v.Require("filter", in.Filter)
	if len(in.Data) == 0 {
		v.Add("data", "is required")
	}
	return v
}

// Update patches matching rows. Mutating.
func (c *Client) Update(ctx context.Context, in UpdateInput) ([]Row, error) {
	path := fmt.Sprintf("/%s?%s", url.PathEscape(in.Table), in.Filter)
	var rows []Row
	if err := c.do(ctx, http.MethodPatch, path, in.Data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteInput removes rows matched by a PostgREST filter.
type DeleteInput struct {
	Table  string `json:"table"`
	Filter string `json:"filter"`
}

func (in *DeleteInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("table", in.Table)
	v.Require("filter", in.Filter)
	return v
}

// Delete removes matching rows. Mutating.
func (c *Client) Delete(ctx context.Context, in DeleteInput) ([]Row, error) {
	path := fmt.Sprintf("/%s?%s", url.PathEscape(in.Table), in.Filter)
	var rows []Row
	if err := c.do(ctx, http.MethodDelete, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// TableStatsInput addresses one table.
type TableStatsInput struct {
	Table string `json:"table"`
}

func (in *TableStatsInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("table", in.Table)
	return v
}

// TableStats reports the row count of a table.
type TableStats struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// Stats counts rows in a table via PostgREST's count aggregate. Read-only.
func (c *Client) Stats(ctx context.Context, in TableStatsInput) (TableStats, error) {
	path := fmt.Sprintf("/%s?select=count", url.PathEscape(in.Table))
	var rows []struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return TableStats{}, err
	}
	stats := TableStats{Table: in.Table}
	if len(rows) > 0 {
		stats.Count = rows[0].Count
	}
	return stats, nil
}
