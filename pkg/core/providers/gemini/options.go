// Package gemini wraps the Google GenAI SDK for the two completion calls a
// session makes: live suggestions and the post-call summary.
package gemini

import "net/http"

// Option configures the Provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint. Tests point it at a local server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithModel sets the default model used when a request names none.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}
