// Package provider implements realitybench.Provider over an OpenAI-compatible
// chat completion API and over a seeded random source.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/playperu/realitybench/internal/realitybench"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultMaxRetries  = 12
	DefaultRetryDelay  = 5 * time.Second
	DefaultTemperature = 0.8
	maxTokens          = 4096
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	MaxRetries  int
	RetryDelay  time.Duration
	Temperature float32
}

// OpenAI sends each request as a system + user chat completion. Responses
// that fail the request schema are retried like transport errors.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: logger,
	}
}

func (o *OpenAI) Complete(ctx context.Context, req realitybench.Request) (string, error) {
	chat, err := o.chatRequest(req)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := range o.cfg.MaxRetries {
		if attempt > 0 {
			// Linear backoff: delay, 2*delay, 3*delay...
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(o.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		text, err := o.complete(ctx, chat, req.Schema)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		o.logger.Warn("completion failed",
			"model", req.Model,
			"attempt", attempt+1,
			"max_attempts", o.cfg.MaxRetries,
			"error", err,
		)
	}
	return "", fmt.Errorf("%w: %d attempts failed: %w", realitybench.ErrProvider, o.cfg.MaxRetries, lastErr)
}

func (o *OpenAI) complete(ctx context.Context, chat openai.ChatCompletionRequest, schema realitybench.Schema) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("api status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}

	text := resp.Choices[0].Message.Content
	if len(schema.Properties) > 0 {
		if _, err := schema.Decode(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (o *OpenAI) chatRequest(req realitybench.Request) (openai.ChatCompletionRequest, error) {
	prompt := req.Prompt
	chat := openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Temperature: o.cfg.Temperature,
	}

	if len(req.Schema.Properties) > 0 {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return chat, fmt.Errorf("encoding response schema: %w", err)
		}
		prompt = fmt.Sprintf("Respond to the following prompt in JSON format.\nConform to this JSON schema: %s\n\n%s", schema, prompt)
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	chat.Messages = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	return chat, nil
}
