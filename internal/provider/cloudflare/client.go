// Package cloudflare wraps the Cloudflare v4 REST API: DNS records, Workers,
// and KV storage.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/InnerAnimal/meaux-infra/internal/provider"
	"github.com/InnerAnimal/meaux-infra/internal/validate"
)

const (
	providerName   = "cloudflare"
	defaultBaseURL = "https://api.cloudflare.com/client/v4"

	// Vercel anycast addresses used when pointing a domain at Vercel.
	vercelIPv4  = "76.76.21.21"
	vercelIPv6  = "2606:4700:10::6816:1515"
	vercelCNAME = "cname.vercel-dns.com"
)

// Client is a thin authenticated wrapper over the Cloudflare API. The token
// is resolved per call so rotation takes effect without a restart.
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

// New constructs a Cloudflare client reading its token from the environment.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: provider.NewHTTPClient(),
		token:      provider.EnvToken("CLOUDFLARE_API_TOKEN"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the uniform Cloudflare response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []apiMessage    `json:"errors"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	token := c.token()
	if token == "" {
		return &provider.ConfigError{Provider: providerName, Key: "CLOUDFLARE_API_TOKEN"}
	}
	var env envelope
	err := provider.Do(ctx, c.httpClient, providerName, provider.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: provider.BearerHeader(token),
		Body:    body,
	}, &env)
	if err != nil {
		return err
	}
	if !env.Success {
		return &provider.Error{Provider: providerName, StatusCode: http.StatusOK, Body: joinMessages(env.Errors)}
	}
	if result == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("decode cloudflare result: %w", err)
	}
	return nil
}

func joinMessages(msgs []apiMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, fmt.Sprintf("%d %s", msg.Code, msg.Message))
	}
	if len(parts) == 0 {
		return "request unsuccessful"
	}
	return strings.Join(parts, "; ")
}

// DNSRecord is the normalized subset of a Cloudflare DNS record.
type DNSRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

// ListDNSRecordsInput filters records within a zone.
type ListDNSRecordsInput struct {
	ZoneID string `json:"zoneId"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type,omitempty"`
}

func (in *ListDNSRecordsInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("zoneId", in.ZoneID)
	return v
}

// ListDNSRecords lists DNS records in a zone. Read-only.
func (c *Client) ListDNSRecords(ctx context.Context, in ListDNSRecordsInput) ([]DNSRecord, error) {
	params := url.Values{}
	if in.Name != "" {
		params.Set("name", in.Name)
	}
	if in.Type != "" {
		params.Set("type", in.Type)
	}
	path := fmt.Sprintf("/zones/%s/dns_records", url.PathEscape(in.ZoneID))
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var records []DNSRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UpsertDNSRecordInput creates or replaces one record by name and type.
type UpsertDNSRecordInput struct {
	ZoneID  string `json:"zoneId"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied *bool  `json:"proxied,omitempty"`
	TTL     int    `json:"ttl,omitempty"`
}

func (in *UpsertDNSRecordInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("zoneId", in.ZoneID)
	v.Require("type", in.Type)
	v.OneOf("type", in.Type, "A", "AAAA", "CNAME", "TXT", "MX")
	v.Require("name", in.Name)
	v.Require("content", in.Content)
	return v
}

type recordPayload struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

func (in UpsertDNSRecordInput) payload() recordPayload {
	proxied := true
	if in.Proxied != nil {
		proxied = *in.Proxied
	}
	ttl := in.TTL
	if ttl == 0 {
		ttl = 1
	}
	return recordPayload{Type: in.Type, Name: in.Name, Content: in.Content, Proxied: proxied, TTL: ttl}
}

// UpsertDNSRecord checks for an existing record by name and type, then PUTs
// over it or POSTs a new one. Mutating.
func (c *Client) UpsertDNSRecord(ctx context.Context, in UpsertDNSRecordInput) (DNSRecord, error) {
	existing, err := c.ListDNSRecords(ctx, ListDNSRecordsInput{ZoneID: in.ZoneID, Name: in.Name, Type: in.Type})
	if err != nil {
		return DNSRecord{}, err
	}
	var record DNSRecord
	if len(existing) > 0 {
		path := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(in.ZoneID), url.PathEscape(existing[0].ID))
		err = c.do(ctx, http.MethodPut, path, in.payload(), &record)
	} else {
		path := fmt.Sprintf("/zones/%s/dns_records", url.PathEscape(in.ZoneID))
		err = c.do(ctx, http.MethodPost, path, in.payload(), &record)
	}
	if err != nil {
		return DNSRecord{}, err
	}
	return record, nil
}

// PointToVercelInput points a root domain and its www alias at Vercel.
type PointToVercelInput struct {
	ZoneID string `json:"zoneId"`
	Domain string `json:"domain"`
}

func (in *PointToVercelInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("zoneId", in.ZoneID)
	v.Require("domain", in.Domain)
	return v
}

// PointToVercel issues A, AAAA and CNAME records as one logical unit.
// Mutating. On partial failure the records already issued are returned
// alongside the error so the caller can see what landed.
func (c *Client) PointToVercel(ctx context.Context, in PointToVercelInput) ([]DNSRecord, error) {
	wanted := []recordPayload{
		{Type: "A", Name: in.Domain, Content: vercelIPv4, Proxied: true, TTL: 1},
		{Type: "AAAA", Name: in.Domain, Content: vercelIPv6, Proxied: true, TTL: 1},
		{Type: "CNAME", Name: "www." + in.Domain, Content: vercelCNAME, Proxied: true, TTL: 1},
	}
	issued := make([]DNSRecord, 0, len(wanted))
	path := fmt.Sprintf("/zones/%s/dns_records", url.PathEscape(in.ZoneID))
	for _, payload := range wanted {
		var record DNSRecord
		if err := c.do(ctx, http.MethodPost, path, payload, &record); err != nil {
			return issued, fmt.Errorf("issued %d of %d records for %s: %w", len(issued), len(wanted), in.Domain, err)
		}
		issued = append(issued, record)
	}
	return issued, nil
}

// WorkerService is a deployed Worker script entry.
type WorkerService struct {
	ID         string `json:"id"`
	CreatedOn  string `json:"created_on,omitempty"`
	ModifiedOn string `json:"modified_on,omitempty"`
}

// ListWorkersInput scopes Worker listing to an account.
type ListWorkersInput struct {
	AccountID string `json:"accountId"`
}

func (in *ListWorkersInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("accountId", in.AccountID)
	return v
}

// ListWorkers lists Worker services in an account. Read-only.
func (c *Client) ListWorkers(ctx context.Context, in ListWorkersInput) ([]WorkerService, error) {
	path := fmt.Sprintf("/accounts/%s/workers/services", url.PathEscape(in.AccountID))
	var services []WorkerService
	if err := c.do(ctx, http.MethodGet, path, nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// KVBinding attaches a KV namespace to a Worker.
type KVBinding struct {
	Name        string `json:"name"`
	NamespaceID string `json:"namespace_id"`
}

// DeployWorkerInput uploads a Worker script.
type DeployWorkerInput struct {
	AccountID  string      `json:"accountId"`
	WorkerName string      `json:"workerName"`
	Script     string      `json:"script"`
	KVBindings []KVBinding `json:"kvBindings,omitempty"`
}

func (in *DeployWorkerInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("accountId", in.AccountID)
	v.Require("workerName", in.WorkerName)
	v.Require("script", in.Script)
	for i, binding := range in.KVBindings {
		v.Require(fmt.Sprintf("kvBindings[%d].name", i), binding.Name)
		v.Require(fmt.Sprintf("kvBindings[%d].namespace_id", i), binding.NamespaceID)
	}
	return v
}

// DeployResult reports the uploaded script identity.
type DeployResult struct {
	ID         string `json:"id"`
	Etag       string `json:"etag,omitempty"`
	ModifiedOn string `json:"modified_on,omitempty"`
}

// DeployWorker uploads a Worker script as multipart form data with optional
// KV bindings. Mutating.
func (c *Client) DeployWorker(ctx context.Context, in DeployWorkerInput) (DeployResult, error) {
	token := c.token()
	if token == "" {
		return DeployResult{}, &provider.ConfigError{Provider: providerName, Key: "CLOUDFLARE_API_TOKEN"}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	scriptHeader := textproto.MIMEHeader{}
	scriptHeader.Set("Content-Disposition", `form-data; name="script"; filename="worker.js"`)
	scriptHeader.Set("Content-Type", "application/javascript")
	part, err := writer.CreatePart(scriptHeader)
	if err != nil {
		return DeployResult{}, fmt.Errorf("build multipart payload: %w", err)
	}
	if _, err := part.Write([]byte(in.Script)); err != nil {
		return DeployResult{}, fmt.Errorf("build multipart payload: %w", err)
	}
	if len(in.KVBindings) > 0 {
		bindings := make([]map[string]string, 0, len(in.KVBindings))
		for _, binding := range in.KVBindings {
			bindings = append(bindings, map[string]string{
				"type":         "kv_namespace",
				"name":         binding.Name,
				"namespace_id": binding.NamespaceID,
			})
		}
		metadata, err := json.Marshal(map[string]any{"bindings": bindings})
		if err != nil {
			return DeployResult{}, fmt.Errorf("encode worker metadata: %w", err)
		}
		if err := writer.WriteField("metadata", string(metadata)); err != nil {
			return DeployResult{}, fmt.Errorf("build multipart payload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return DeployResult{}, fmt.Errorf("build multipart payload: %w", err)
	}

	headers := provider.BearerHeader(token)
	headers.Set("Content-Type", writer.FormDataContentType())
	path := fmt.Sprintf("/accounts/%s/workers/scripts/%s", url.PathEscape(in.AccountID), url.PathEscape(in.WorkerName))

	var env envelope
	err = provider.Do(ctx, c.httpClient, providerName, provider.Request{
		Method:  http.MethodPut,
		URL:     c.baseURL + path,
		Headers: headers,
		RawBody: &buf,
	}, &env)
	if err != nil {
		return DeployResult{}, err
	}
	if !env.Success {
		return DeployResult{}, &provider.Error{Provider: providerName, StatusCode: http.StatusOK, Body: joinMessages(env.Errors)}
	}
	var result DeployResult
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			return DeployResult{}, fmt.Errorf("decode cloudflare result: %w", err)
		}
	}
	return result, nil
}

// GetKVInput addresses one KV value.
type GetKVInput struct {
	AccountID   string `json:"accountId"`
	NamespaceID string `json:"namespaceId"`
	Key         string `json:"key"`
}

func (in *GetKVInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("accountId", in.AccountID)
	v.Require("namespaceId", in.NamespaceID)
	v.Require("key", in.Key)
	return v
}

// GetKV reads a raw KV value. Read-only.
func (c *Client) GetKV(ctx context.Context, in GetKVInput) (string, error) {
	token := c.token()
	if token == "" {
		return "", &provider.ConfigError{Provider: providerName, Key: "CLOUDFLARE_API_TOKEN"}
	}
	path := fmt.Sprintf("/accounts/%s/storage/kv/namespaces/%s/values/%s",
		url.PathEscape(in.AccountID), url.PathEscape(in.NamespaceID), url.PathEscape(in.Key))
	return provider.DoText(ctx, c.httpClient, providerName, provider.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + path,
		Headers: provider.BearerHeader(token),
	})
}

// SetKVInput writes one KV value.
type SetKVInput struct {
	AccountID   string `json:"accountId"`
	NamespaceID string `json:"namespaceId"`
	Key         string `json:"key"`
	Value       string `json:"value"`
}

func (in *SetKVInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("accountId", in.AccountID)
	v.Require("namespaceId", in.NamespaceID)
	v.Require("key", in.Key)
	v.Require("value", in.Value)
	return v
}

// SetKV stores a raw KV value. Mutating.
func (c *Client) SetKV(ctx context.Context, in SetKVInput) error {
	token := c.token()
	if token == "" {
		return &provider.ConfigError{Provider: providerName, Key: "CLOUDFLARE_API_TOKEN"}
	}
	headers := provider.BearerHeader(token)
	headers.Set("Content-Type", "text/plain")
	path := fmt.Sprintf("/accounts/%s/storage/kv/namespaces/%s/values/%s",
		url.PathEscape(in.AccountID), url.PathEscape(in.NamespaceID), url.PathEscape(in.Key))
	_, err := provider.DoText(ctx, c.httpClient, providerName, provider.Request{
		Method:  http.MethodPut,
		URL:     c.baseURL + path,
		Headers: headers,
		RawBody: strings.NewReader(in.Value),
	})
	return err
}
