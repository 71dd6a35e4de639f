package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultGatewayTimeout = 300 * time.Second

// GatewayProvider talks to a cloud inference gateway exposing a
// chat-completions endpoint with bearer-token auth. Stateless aside from
// endpoint and credential.
type GatewayProvider struct {
	client chatClient
}

// GatewayOption configures the provider.
type GatewayOption func(*GatewayProvider)

// WithGatewayHTTPClient overrides the HTTP transport (used in tests).
func WithGatewayHTTPClient(c *http.Client) GatewayOption {
	return func(p *GatewayProvider) { p.client.httpClient = c }
}

// WithGatewayTimeout overrides the per-request HTTP timeout. Zero or
// negative values keep the default.
func WithGatewayTimeout(d time.Duration) GatewayOption {
	return func(p *GatewayProvider) {
		if d > 0 {
			p.client.httpClient.Timeout = d
		}
	}
}

// NewGatewayProvider constructs the gateway provider. The endpoint is the
// full chat-completions URL.
func NewGatewayProvider(endpoint, token string, logger zerolog.Logger, opts ...GatewayOption) *GatewayProvider {
	p := &GatewayProvider{
		client: chatClient{
			providerID: ProviderGateway,
			endpoint:   endpoint,
			authorize: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+token)
			},
			httpClient: &http.Client{Timeout: defaultGatewayTimeout},
			logger:     logger.With().Str("provider", ProviderGateway).Logger(),
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *GatewayProvider) ID() string { return ProviderGateway }

// Execute implements Provider.
func (p *GatewayProvider) Execute(ctx context.Context, req Request, onChunk OnChunk) (*Response, error) {
	return p.client.execute(ctx, req, onChunk)
}

// TestConnection issues a minimal one-token completion to verify the
// endpoint and credential.
func (p *GatewayProvider) TestConnection(ctx context.Context) error {
	_, err := p.client.execute(ctx, Request{
		Prompt:    "ping",
		ModelID:   DefaultModel(ProviderGateway),
		MaxTokens: 1,
	}, nil)
	return err
}
