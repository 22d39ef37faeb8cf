package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// groqBaseURL is the OpenAI-compatible endpoint for Groq-hosted models.
const groqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIProvider implements Provider against any OpenAI-compatible chat
// completions API (OpenAI itself, or Groq via BaseURL).
type OpenAIProvider struct {
	client *openai.Client
	name   string
	config Config
}

// NewOpenAIProvider creates a provider for the OpenAI API.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	return newCompatProvider("openai", config)
}

// NewGroqProvider creates a provider for Groq's OpenAI-compatible API.
func NewGroqProvider(config Config) (*OpenAIProvider, error) {
	if config.BaseURL == "" {
		config.BaseURL = groqBaseURL
	}
	return newCompatProvider("groq", config)
}

func newCompatProvider(name string, config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", name)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		name:   name,
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Invoke performs one chat completion call.
func (p *OpenAIProvider) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResponse, error) {
	mdl := req.Model
	if mdl == "" {
		mdl = p.config.Model
	}
	if mdl == "" {
		mdl = openai.GPT4oMini
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 1000
	}

	timeout := time.Duration(p.config.TimeoutS) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: mdl,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONOnly {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", p.name)
	}

	return &InvokeResponse{
		Content:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      mdl,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
