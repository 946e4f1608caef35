// Package localllm talks to OpenAI-compatible chat completion servers
// such as Ollama or vLLM, for deployments without a hosted model.
package localllm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/minutes-backend/internal/observability"
	"github.com/yungbote/minutes-backend/internal/platform/envutil"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	// JSONMode requests a JSON object reply. Turn it off for servers that
	// reject response_format.
	JSONMode bool
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:     envutil.String("LOCAL_LLM_BASE_URL", "http://localhost:11434/v1"),
		APIKey:      envutil.String("LOCAL_LLM_API_KEY", "local"),
		Model:       envutil.String("LOCAL_LLM_MODEL", "llama3.1"),
		Temperature: float32(envutil.Float("LOCAL_LLM_TEMPERATURE", 0.3)),
		JSONMode:    envutil.Bool("LOCAL_LLM_JSON_MODE", true),
	}
}

type Client struct {
	log    *logger.Logger
	api    *openai.Client
	model  string
	temp   float32
	asJSON bool
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("local llm base url required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("local llm model required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		log:    log.With("service", "LocalLLM", "model", cfg.Model),
		api:    openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		temp:   cfg.Temperature,
		asJSON: cfg.JSONMode,
	}, nil
}

func (c *Client) Model() string { return c.model }

// Complete sends one system+user exchange and returns the reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if c.asJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		err = wrapError(err)
		observability.Current().ObserveLLMRequest("local", c.model, statusOf(err), time.Since(start))
		return "", err
	}
	observability.Current().ObserveLLMRequest("local", c.model, "200", time.Since(start))
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("local llm returned no choices")
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("local llm returned empty content")
	}
	c.log.Debug("Local completion done", "finish_reason", resp.Choices[0].FinishReason, "tokens", resp.Usage.TotalTokens)
	return text, nil
}

// StatusError exposes the upstream HTTP status for retry classification.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string       { return fmt.Sprintf("local llm http %d: %v", e.Code, e.Err) }
func (e *StatusError) Unwrap() error       { return e.Err }
func (e *StatusError) HTTPStatusCode() int { return e.Code }

func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{Code: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &StatusError{Code: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}

func statusOf(err error) string {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprint(se.Code)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
