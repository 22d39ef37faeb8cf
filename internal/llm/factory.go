package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates an LLM provider from configuration.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "groq":
		return NewGroqProvider(config)

	case "":
		return nil, fmt.Errorf("no LLM provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, groq)", config.Provider)
	}
}
