// Package llm defines the language-model provider abstraction and its two
// HTTP backends. Providers are interchangeable behind the Provider
// interface and must return responses in the exact same shape, so the
// rest of the engine never branches on provider identity.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider identifiers for the two supported backends.
const (
	ProviderGateway = "gateway" // cloud inference gateway (bearer auth)
	ProviderVendor  = "vendor"  // direct vendor API (api-key auth)
)

// ToolDef describes a tool offered to the model.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Usage carries token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Request is the provider-agnostic input to Execute.
type Request struct {
	Prompt            string
	System            string
	ModelID           string
	MaxTokens         int
	Temperature       float64
	ExtendedReasoning bool
	ReasoningBudget   int // only honored when ExtendedReasoning is set
	Stream            bool
	Tools             []ToolDef
}

// Validate checks the input constraints shared by all providers.
func (r *Request) Validate() error {
	if r.Prompt == "" {
		return errors.New("llm: prompt must not be empty")
	}
	if r.MaxTokens <= 0 {
		return errors.New("llm: max_tokens must be positive")
	}
	return nil
}

// Response is the uniform result shape produced by every provider.
type Response struct {
	Content        string
	ReasoningTrace string
	ToolCalls      []ToolCall
	Usage          Usage
	ProviderID     string
	ModelID        string
}

// Chunk is one incremental streaming fragment. The final chunk carries
// Done=true and no content.
type Chunk struct {
	Content   string
	Reasoning string
	Done      bool
}

// OnChunk receives streaming fragments as they arrive. May be nil for
// non-streaming calls.
type OnChunk func(Chunk)

// Provider is the capability interface over language-model backends.
type Provider interface {
	// Execute sends one completion request. In streaming mode onChunk is
	// invoked for each fragment, then once more with Done=true; the fully
	// assembled response is returned either way.
	Execute(ctx context.Context, req Request, onChunk OnChunk) (*Response, error)

	// TestConnection verifies the endpoint is reachable and credentialed.
	TestConnection(ctx context.Context) error

	// ID returns the provider identifier.
	ID() string
}

// Registry holds explicitly constructed providers. It is built once at
// startup and passed into the engine; there are no ambient global instances.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry from the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.ID()] = p
	}
	return r
}

// Get returns the provider with the given id.
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("llm: no provider registered with id %q", id)
	}
	return p, nil
}

// Has reports whether a provider with the given id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.providers[id]
	return ok
}
