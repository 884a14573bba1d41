// Package integrations groups the single-operation providers: GitHub pull
// requests, Stripe product listing, GA4 measurement events, WhatsApp
// messaging, and OpenAI text generation.
package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/InnerAnimal/meaux-infra/internal/provider"
	"github.com/InnerAnimal/meaux-infra/internal/validate"
)

// Client bundles credentials for the miscellaneous integrations. Every
// credential is resolved per call.
type Client struct {
	httpClient    *http.Client
	githubToken   provider.TokenSource
	stripeKey     provider.TokenSource
	ga4Property   provider.TokenSource
	ga4Secret     provider.TokenSource
	whatsappToken provider.TokenSource
	openaiKey     provider.TokenSource

	githubBaseURL   string
	stripeBaseURL   string
	ga4BaseURL      string
	whatsappBaseURL string
	openaiBaseURL   string
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

// WithBaseURLs points every integration at one API root, for tests.
func WithBaseURLs(base string) Option {
	return func(c *Client) {
		c.githubBaseURL = base
		c.stripeBaseURL = base
		c.ga4BaseURL = base
		c.whatsappBaseURL = base
		c.openaiBaseURL = base
	}
}

// WithTokens overrides every credential with static values, for tests.
func WithTokens(github, stripe, ga4Property, ga4Secret, whatsapp, openai string) Option {
	return func(c *Client) {
		c.githubToken = provider.StaticToken(github)
		c.stripeKey = provider.StaticToken(stripe)
		c.ga4Property = provider.StaticToken(ga4Property)
		c.ga4Secret = provider.StaticToken(ga4Secret)
		c.whatsappToken = provider.StaticToken(whatsapp)
		c.openaiKey = provider.StaticToken(openai)
	}
}

// New constructs an integrations client reading credentials from the
// environment.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:      provider.NewHTTPClient(),
		githubToken:     provider.EnvToken("GITHUB_TOKEN"),
		stripeKey:       provider.EnvToken("STRIPE_API_KEY"),
		ga4Property:     provider.EnvToken("GA4_PROPERTY_ID"),
		ga4Secret:       provider.EnvToken("GA4_API_SECRET"),
		whatsappToken:   provider.EnvToken("WHATSAPP_TOKEN"),
		openaiKey:       provider.EnvToken("OPENAI_API_KEY"),
		githubBaseURL:   "https://api.github.com",
		stripeBaseURL:   "https://api.stripe.com",
		ga4BaseURL:      "https://www.google-analytics.com",
		whatsappBaseURL: "https://graph.facebook.com/v19.0",
		openaiBaseURL:   "https://api.openai.com",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenPRInput opens a pull request. Repo format: owner/name.
type OpenPRInput struct {
	Repo  string `json:"repo"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

func (in *OpenPRInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("repo", in.Repo)
	v.Require("head", in.Head)
	v.Require("base", in.Base)
	v.Require("title", in.Title)
	return v
}

// PullRequest is the normalized subset of a created pull request.
type PullRequest struct {
	Number int    `json:"number"`
	URL    string `json:"html_url"`
	State  string `json:"state"`
}

// OpenPR opens a pull request on GitHub. Mutating.
func (c *Client) OpenPR(ctx context.Context, in OpenPRInput) (PullRequest, error) {
	token := c.githubToken()
	if token == "" {
		return PullRequest{}, &provider.ConfigError{Provider: "github", Key: "GITHUB_TOKEN"}
	}
	headers := provider.BearerHeader(token)
	headers.Set("User-Agent", "meaux-infra")
	var pr PullRequest
	err := provider.Do(ctx, c.httpClient, "github", provider.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/repos/%s/pulls", c.githubBaseURL, in.Repo),
		Headers: headers,
		Body: map[string]string{
			"title": in.Title,
			"head":  in.Head,
			"base":  in.Base,
			"body":  in.Body,
		},
	}, &pr)
	if err != nil {
		return PullRequest{}, err
	}
	return pr, nil
}

// ListProductsInput caps Stripe product listing.
type ListProductsInput struct {
	Limit int `json:"limit,omitempty"`
}

func (in *ListProductsInput) Validate() validate.Violations {
	var v validate.Violations
	v.Min("limit", in.Limit, 0)
	return v
}

// Product is the normalized subset of a Stripe product.
type Product struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ListProducts lists Stripe products. Read-only.
func (c *Client) ListProducts(ctx context.Context, in ListProductsInput) ([]Product, error) {
	key := c.stripeKey()
	if key == "" {
		return nil, &provider.ConfigError{Provider: "stripe", Key: "STRIPE_API_KEY"}
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	var payload struct {
		Data []Product `json:"data"`
	}
	err := provider.Do(ctx, c.httpClient, "stripe", provider.Request{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/v1/products?limit=%d", c.stripeBaseURL, limit),
		Headers: provider.BearerHeader(key),
	}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// SendEventInput ships one GA4 Measurement Protocol event.
type SendEventInput struct {
	ClientID string         `json:"client_id"`
	Name     string         `json:"name"`
	Params   map[string]any `json:"params,omitempty"`
}

func (in *SendEventInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("client_id", in.ClientID)
	v.Require("name", in.Name)
	return v
}

// SendEvent posts an analytics event. Classified read: it records telemetry
// but changes no managed infrastructure state.
func (c *Client) SendEvent(ctx context.Context, in SendEventInput) error {
	property := c.ga4Property()
	secret := c.ga4Secret()
	if property == "" || secret == "" {
		return &provider.ConfigError{Provider: "ga4", Key: "GA4_PROPERTY_ID or GA4_API_SECRET"}
	}
	params := in.Params
	if params == nil {
		params = map[string]any{}
	}
	endpoint := fmt.Sprintf("%s/mp/collect?measurement_id=%s&api_secret=%s",
		c.ga4BaseURL, url.QueryEscape(property), url.QueryEscape(secret))
	return provider.Do(ctx, c.httpClient, "ga4", provider.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Body: map[string]any{
			"client_id": in.ClientID,
			"events":    []map[string]any{{"name": in.Name, "params": params}},
		},
	}, nil)
}

// SendMessageInput sends one WhatsApp text message.
type SendMessageInput struct {
	PhoneNumberID string `json:"phone_number_id"`
	To            string `json:"to"`
	Text          string `json:"text"`
}

func (in *SendMessageInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("phone_number_id", in.PhoneNumberID)
	v.Require("to", in.To)
	v.Require("text", in.Text)
	return v
}

// MessageResult reports the accepted message identity.
type MessageResult struct {
	MessageID string `json:"messageId"`
}

// SendMessage sends a WhatsApp message via the Meta Cloud API. Mutating.
func (c *Client) SendMessage(ctx context.Context, in SendMessageInput) (MessageResult, error) {
	token := c.whatsappToken()
	if token == "" {
		return MessageResult{}, &provider.ConfigError{Provider: "whatsapp", Key: "WHATSAPP_TOKEN"}
	}
	var payload struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	err := provider.Do(ctx, c.httpClient, "whatsapp", provider.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/%s/messages", c.whatsappBaseURL, url.PathEscape(in.PhoneNumberID)),
		Headers: provider.BearerHeader(token),
		Body: map[string]any{
			"messaging_product": "whatsapp",
			"to":                in.To,
			"type":              "text",
			"text":              map[string]string{"body": in.Text},
		},
	}, &payload)
	if err != nil {
		return MessageResult{}, err
	}
	result := MessageResult{}
	if len(payload.Messages) > 0 {
		result.MessageID = payload.Messages[0].ID
	}
	return result, nil
}

// GenerateInput requests a completion from OpenAI.
type GenerateInput struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

func (in *GenerateInput) Validate() validate.Violations {
	var v validate.Violations
	v.Require("prompt", in.Prompt)
	return v
}

// Generate produces text with OpenAI. Read-only.
func (c *Client) Generate(ctx context.Context, in GenerateInput) (string, error) {
	key := c.openaiKey()
	if key == "" {
		return "", &provider.ConfigError{Provider: "openai", Key: "OPENAI_API_KEY"}
	}
	model := in.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	err := provider.Do(ctx, c.httpClient, "openai", provider.Request{
		Method:  http.MethodPost,
		URL:     c.openaiBaseURL + "/v1/chat/completions",
		Headers: provider.BearerHeader(key),
		Body: map[string]any{
			"model":    model,
			"messages": []map[string]string{{"role": "user", "content": in.Prompt}},
		},
	}, &payload)
	if err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", nil
	}
	return payload.Choices[0].Message.Content, nil
}
