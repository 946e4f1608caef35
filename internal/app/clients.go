package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/minutes-backend/internal/clients/gcp"
	"github.com/yungbote/minutes-backend/internal/modules/minutes/steps"
	"github.com/yungbote/minutes-backend/internal/platform/localllm"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/platform/openai"
	"github.com/yungbote/minutes-backend/internal/realtime/bus"
)

type Clients struct {
	Bus bus.Bus
	// LLM is nil when LLM_PROVIDER=none; every extraction then falls back.
	LLM steps.LLM

	// Audio clients are only created when an audio bucket is configured.
	AudioBucket gcp.AudioBucket
	Speech      gcp.Speech
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Events
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		b, err := bus.NewRedisBus(log, bus.RedisConfig{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		out.Bus = b
	} else {
		out.Bus = bus.NewMemoryBus()
	}

	llm, err := NewLLM(log, cfg.LLMProvider)
	if err != nil {
		out.Close(log)
		return Clients{}, err
	}
	out.LLM = llm

	if strings.TrimSpace(cfg.AudioBucket) != "" {
		bucket, err := gcp.NewAudioBucket(ctx, log, cfg.AudioBucket, cfg.AudioPrefix)
		if err != nil {
			out.Close(log)
			return Clients{}, fmt.Errorf("init audio bucket: %w", err)
		}
		out.AudioBucket = bucket
		speech, err := gcp.NewSpeech(ctx, log)
		if err != nil {
			out.Close(log)
			return Clients{}, fmt.Errorf("init speech client: %w", err)
		}
		out.Speech = speech
	}
	return out, nil
}

// NewLLM builds the completion backend named by provider.
func NewLLM(log *logger.Logger, provider string) (steps.LLM, error) {
	switch provider {
	case LLMProviderOpenAI:
		c, err := openai.NewClient(log, openai.ConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		return openai.NewCompleter(c, steps.MinutesSchemaName, steps.MinutesSchema()), nil
	case LLMProviderLocal:
		c, err := localllm.New(log, localllm.ConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("init local llm client: %w", err)
		}
		return c, nil
	case LLMProviderNone:
		log.Warn("No LLM configured; minutes will fall back to transcript excerpts")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", provider)
	}
}

func (c Clients) Close(log *logger.Logger) {
	if c.Bus != nil {
		if err := c.Bus.Close(); err != nil {
			log.Warn("Event bus close failed", "error", err)
		}
	}
	if c.Speech != nil {
		_ = c.Speech.Close()
	}
	if c.AudioBucket != nil {
		_ = c.AudioBucket.Close()
	}
}
