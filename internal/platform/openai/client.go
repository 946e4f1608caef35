package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/minutes-backend/internal/observability"
	"github.com/yungbote/minutes-backend/internal/pkg/httpx"
	"github.com/yungbote/minutes-backend/internal/platform/envutil"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

// Client is the Responses API surface used by the minutes pipeline.
type Client interface {
	// GenerateJSON asks for schema-constrained output and returns the raw
	// JSON text. Callers decode it themselves.
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (string, error)
	GenerateText(ctx context.Context, system, user string) (string, error)
	Model() string
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Temperature *float64
}

// ConfigFromEnv reads the OPENAI_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:     envutil.String("OPENAI_API_KEY", ""),
		BaseURL:    envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:      envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:    envutil.Duration("OPENAI_TIMEOUT_SECONDS", 120*time.Second),
		MaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 3),
	}
	if !envutil.Bool("OPENAI_DISABLE_TEMPERATURE", false) {
		temp := envutil.Float("OPENAI_TEMPERATURE", 0.3)
		cfg.Temperature = &temp
	}
	return cfg
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
	sleep      func(time.Duration)

	temperature *float64
	// Models that rejected temperature once are not sent it again.
	noTempMu   sync.RWMutex
	noTempSeen map[string]bool
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:         log.With("service", "OpenAIClient"),
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       strings.TrimSpace(cfg.Model),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		sleep:       time.Sleep,
		temperature: cfg.Temperature,
		noTempSeen:  map[string]bool{},
	}, nil
}

func (c *client) Model() string { return c.model }

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func isUnsupportedTemperature(err error) bool {
	var httpErr *openAIHTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(httpErr.Body)
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, marker := range []string{"unsupported", "unknown parameter", "unrecognized", "not supported", "does not support", "only the default"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model string    `json:"model"`
	Input []message `json:"input"`
	Text  struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

func (r responsesResponse) outputText() (text, refusal string) {
	var out strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				out.WriteString(part.Text)
			case "refusal":
				refusal = part.Refusal
			}
		}
	}
	return out.String(), refusal
}

func (c *client) newRequest(system, user string) *responsesRequest {
	req := &responsesRequest{
		Model: c.model,
		Input: []message{{Role: "system", Content: system}, {Role: "user", Content: user}},
	}
	c.noTempMu.RLock()
	skip := c.noTempSeen[c.model]
	c.noTempMu.RUnlock()
	if !skip {
		req.Temperature = c.temperature
	}
	return req
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (string, error) {
	if schemaName == "" {
		return "", errors.New("schemaName required")
	}
	if schema == nil {
		return "", errors.New("schema required")
	}
	req := c.newRequest(system, user)
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}
	return c.respond(ctx, req)
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	return c.respond(ctx, c.newRequest(system, user))
}

func (c *client) respond(ctx context.Context, req *responsesRequest) (string, error) {
	var resp responsesResponse
	err := c.do(ctx, "/v1/responses", req, &resp)
	if err != nil && req.Temperature != nil && isUnsupportedTemperature(err) {
		c.noTempMu.Lock()
		c.noTempSeen[req.Model] = true
		c.noTempMu.Unlock()
		c.log.Info("Model rejected temperature, retrying without it", "model", req.Model)
		req.Temperature = nil
		err = c.do(ctx, "/v1/responses", req, &resp)
	}
	if err != nil {
		return "", err
	}
	text, refusal := resp.outputText()
	if refusal != "" {
		return "", fmt.Errorf("model refused: %s", refusal)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}

func (c *client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, path string, body *responsesRequest, out any) error {
	backoff := time.Second
	start := time.Now()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			observability.Current().ObserveLLMRequest("openai", body.Model, statusFromResp(resp, nil), time.Since(start))
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt >= c.maxRetries || ctx.Err() != nil {
			observability.Current().ObserveLLMRequest("openai", body.Model, statusFromResp(resp, err), time.Since(start))
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		c.sleep(sleepFor)
		backoff = httpx.NextBackoff(backoff, 10*time.Second)
	}
}

func statusFromResp(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
