package llm

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openRouterURL   = "https://openrouter.ai/api/v1"
	openRouterTitle = "traverse"
)

// NewOpenRouterProvider builds a Chat Completions provider pointed at
// OpenRouter. Model names are OpenRouter slugs such as
// "google/gemini-2.5-flash" and are passed through untouched.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: api key not set")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = openRouterURL
	conf.HTTPClient = &http.Client{Transport: titled{next: http.DefaultTransport}}
	return newChatProvider("openrouter", conf, cfg.BaseURL, cfg.Model), nil
}

// titled sets the X-Title header OpenRouter uses to attribute traffic to
// an app.
type titled struct {
	next http.RoundTripper
}

func (t titled) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("X-Title", openRouterTitle)
	return t.next.RoundTrip(r)
}
