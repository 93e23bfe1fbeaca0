package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/traverse/internal/logger"
	"github.com/abhisek/traverse/internal/store"
)

// NewProvider builds the vendor client cfg selects and wraps it so that a
// call from the gateway passes timeout, then retry, then logging. Every
// attempt is logged and the timeout bounds all attempts together.
func NewProvider(ctx context.Context, cfg Config, events store.EventRepo, log *logger.Logger) (Provider, error) {
	base, err := vendor(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm provider %q: %w", cfg.Provider, err)
	}
	return WithTimeout(WithRetry(WithLogging(base, events, log), cfg.Retry), cfg.Timeout), nil
}

func vendor(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		return NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		return NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	}
	return nil, errors.New("unknown provider")
}
