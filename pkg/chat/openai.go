package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-agrivoice/pkg/langdetect"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	providerOpenAI = "openai"
)

// DefaultSystemPrompt keeps replies short and speakable.
const DefaultSystemPrompt = "You are a friendly farming assistant for smallholder farmers. " +
	"Answer in two to four short spoken sentences. Avoid lists, tables and markdown. " +
	"Give practical steps with quantities where it helps."

// OpenAI retrieves replies from any OpenAI-compatible chat completion API
// (OpenAI, Ollama, vLLM, Groq).
type OpenAI struct {
	config  *Config
	http    *httpTransport
	baseURL string
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAI creates an OpenAI-compatible retriever.
// The API key is only required for the default OpenAI endpoint.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		if cfg.APIKey == "" {
			return nil, ErrNoAPIKey
		}
		baseURL = openAIBaseURL
	}

	return &OpenAI{
		config:  cfg,
		baseURL: baseURL,
		http: &httpTransport{
			config:   cfg,
			client:   cfg.client(),
			logger:   cfg.Logger.With("component", "chat.openai"),
			provider: providerOpenAI,
		},
	}, nil
}

// Retrieve asks the model for a reply in the request language.
func (o *OpenAI) Retrieve(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	start := time.Now()

	payload := map[string]interface{}{
		"model": o.config.Model,
		"messages": []map[string]string{
			{"role": "system", "content": SystemPrompt(o.config.SystemPrompt, req.language())},
			{"role": "user", "content": req.Message},
		},
	}
	if o.config.MaxTokens > 0 {
		payload["max_tokens"] = o.config.MaxTokens
	}

	resp, err := o.http.post(ctx, o.baseURL+"/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("decode response: %w", err))
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyResponse)
	}

	latency := time.Since(start).Milliseconds()
	o.http.logger.Debug("retrieved reply",
		"model", result.Model,
		"language", req.language(),
		"finish_reason", result.Choices[0].FinishReason,
		"latency_ms", latency,
	)

	return &Response{
		Content:   result.Choices[0].Message.Content,
		LatencyMs: latency,
		Provider:  providerOpenAI,
	}, nil
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.http.client.CloseIdleConnections()
	return nil
}

// SystemPrompt appends a reply-language instruction to base.
func SystemPrompt(base string, lang langdetect.Code) string {
	if base == "" {
		base = DefaultSystemPrompt
	}
	return fmt.Sprintf("%s Always reply in %s.", base, langdetect.Name(lang))
}

// Verify OpenAI implements Retriever at compile time.
var _ Retriever = (*OpenAI)(nil)
