package llmclient

import "coreconvo/config"

// New builds the configured LLMClient backend, defaulting to the
// deterministic mock so the orchestration core stays fully testable without
// network access.
func New(cfg *config.Config) Client {
	switch cfg.LLMProvider {
	case config.LLMProviderOpenAI, config.LLMProviderAzure:
		return &OpenAIClient{APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMAPIURL, Model: cfg.LLMModel}
	case config.LLMProviderAnthropic:
		return &AnthropicClient{APIKey: cfg.LLMAPIKey, Model: cfg.LLMModel}
	default:
		return NewEchoMock()
	}
}
