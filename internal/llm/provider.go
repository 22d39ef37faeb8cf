package llm

import (
	"context"

	"github.com/cruxlabs/crux/internal/model"
)

// Provider is the single capability interface every agent role invokes
// through. Retries, timeouts, and schema validation live in the agent
// runner so they are implemented once, not per provider.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Invoke performs one model call and returns the raw text output.
	// When req.JSONOnly is set the provider asks the model for a JSON
	// object response where the API supports it.
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResponse, error)
}

// InvokeRequest is the deterministic input shape for one model call.
type InvokeRequest struct {
	System      string  // System message establishing the role contract
	Prompt      string  // User content
	Model       string  // Model name; empty uses the provider default
	MaxTokens   int     // 0 uses the provider default
	Temperature float32 // Low temperatures keep agent output focused
	JSONOnly    bool    // Request a JSON-object response format
}

// InvokeResponse is the raw model output plus accounting metadata.
type InvokeResponse struct {
	Content    string
	Model      string
	TokensUsed int
}

// Config holds provider construction parameters, lifted from
// model.LLMConfig at startup.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	TimeoutS  int
	MaxTokens int
}

// ConfigFromModel converts the process configuration into llm.Config.
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		TimeoutS:  int(mc.Timeout.Seconds()),
		MaxTokens: mc.MaxTokens,
	}
}
