package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-wingman/pkg/core"
)

const (
	// DefaultModel is used when neither the provider nor the request names one.
	DefaultModel = "gemini-2.5-flash"

	// DefaultMaxTokens bounds a response when the request sets no limit.
	DefaultMaxTokens = 500
)

// Request is one non-streaming generation call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature *float32
	// JSON asks the model for an application/json response.
	JSON bool
}

// Provider issues generation calls through the GenAI SDK.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	client *genai.Client
}

// New creates a provider. A missing API key is a configuration error.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, core.NewCredentialMissingError("completion")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	cfg := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// Model returns the default model.
func (p *Provider) Model() string {
	return p.model
}

// Generate runs one request and returns the response text.
func (p *Provider) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: maxTokens,
		Temperature:     req.Temperature,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", mapError(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
