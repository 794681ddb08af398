package llm

import (
	"fmt"
	"time"

	"github.com/jllopis/campusdesk/pkg/config"
	"github.com/jllopis/campusdesk/pkg/resilience"
)

// MockReply is what the mock provider answers.
const MockReply = "The assistant is running in offline mode and cannot act on requests."

// New builds the configured provider wrapped in Guard.
func New(cfg config.LLMConfig) (Provider, error) {
	var base Provider
	switch cfg.Provider {
	case "openai":
		base = NewOpenAI(
			WithOpenAIModel(cfg.Model),
			WithOpenAIBaseURL(cfg.BaseURL),
			WithOpenAIKey(cfg.APIKey),
		)
	case "ollama":
		base = NewOllama(cfg.BaseURL, cfg.Model)
	case "mock":
		return &MockProvider{Response: MockReply}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	retry := resilience.DefaultRetryConfig().WithMaxAttempts(cfg.MaxRetries + 1)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "llm." + cfg.Provider,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	})
	return Guard(base, retry, breaker, cfg.Timeout), nil
}
