package llm

import (
	"context"
	"encoding/json"
)

// Provider turns one prompt into one structured answer.
type Provider interface {
	// Generate sends req to the model. When req.Schema is set the returned
	// Content has already been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID is the model the provider sends requests to.
	ModelID() string
}

type named interface {
	Name() string
}

// ProviderName returns the vendor behind p. Decorators report the name of
// the provider they wrap.
func ProviderName(p Provider) string {
	if n, ok := p.(named); ok {
		return n.Name()
	}
	return "unknown"
}

// Request is a single-turn generation request. Every gateway operation is
// one system prompt plus one user prompt.
type Request struct {
	System string
	Prompt string

	// Schema, when set, switches the provider to its native JSON mode and
	// makes Generate validate the answer.
	Schema *Schema

	MaxTokens int

	// Temperature is left to the vendor default when zero.
	Temperature float64
}

// NewRequest builds a Request.
func NewRequest(system, prompt string, schema *Schema, maxTokens int) Request {
	return Request{System: system, Prompt: prompt, Schema: schema, MaxTokens: maxTokens}
}

// Schema is a named JSON Schema document. Name doubles as the cache key for
// the compiled form, so two schemas must not share a name.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Response is what a provider returned.
type Response struct {
	// Content is the answer with any code fence removed.
	Content json.RawMessage
	Usage   Usage

	// Model is the model that served the call, which can differ from
	// ModelID when the vendor routes aliases.
	Model string

	// StopReason is "end" or "max_tokens".
	StopReason string
}

// Usage is the token count of one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

const (
	stopEnd       = "end"
	stopMaxTokens = "max_tokens"
)
