package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultVendorTimeout = 300 * time.Second
	vendorAPIVersion     = "2023-06-01"
)

// VendorProvider talks directly to the model vendor's API. Same wire
// shape as the gateway, different endpoint and auth scheme, so both
// produce identical Response objects.
type VendorProvider struct {
	client chatClient
}

// VendorOption configures the provider.
type VendorOption func(*VendorProvider)

// WithVendorHTTPClient overrides the HTTP transport (used in tests).
func WithVendorHTTPClient(c *http.Client) VendorOption {
	return func(p *VendorProvider) { p.client.httpClient = c }
}

// WithVendorTimeout overrides the per-request HTTP timeout. Zero or
// negative values keep the default.
func WithVendorTimeout(d time.Duration) VendorOption {
	return func(p *VendorProvider) {
		if d > 0 {
			p.client.httpClient.Timeout = d
		}
	}
}

// NewVendorProvider constructs the direct-vendor provider.
func NewVendorProvider(endpoint, apiKey string, logger zerolog.Logger, opts ...VendorOption) *VendorProvider {
	p := &VendorProvider{
		client: chatClient{
			providerID: ProviderVendor,
			endpoint:   endpoint,
			authorize: func(r *http.Request) {
				r.Header.Set("x-api-key", apiKey)
				r.Header.Set("anthropic-version", vendorAPIVersion)
			},
			httpClient: &http.Client{Timeout: defaultVendorTimeout},
			logger:     logger.With().Str("provider", ProviderVendor).Logger(),
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *VendorProvider) ID() string { return ProviderVendor }

// Execute implements Provider.
func (p *VendorProvider) Execute(ctx context.Context, req Request, onChunk OnChunk) (*Response, error) {
	return p.client.execute(ctx, req, onChunk)
}

// TestConnection issues a minimal one-token completion to verify the
// endpoint and credential.
func (p *VendorProvider) TestConnection(ctx context.Context) error {
	_, err := p.client.execute(ctx, Request{
		Prompt:    "ping",
		ModelID:   DefaultModel(ProviderVendor),
		MaxTokens: 1,
	}, nil)
	return err
}
