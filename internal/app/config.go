package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/minutes-backend/internal/data/db"
	"github.com/yungbote/minutes-backend/internal/modules/minutes/steps"
	"github.com/yungbote/minutes-backend/internal/platform/envutil"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

const (
	LLMProviderOpenAI = "openai"
	LLMProviderLocal  = "local"
	LLMProviderNone   = "none"
)

type Config struct {
	LogMode     string
	Environment string
	Port        string
	CORSOrigins string

	DB db.Config

	LLMProvider  string
	RedisAddr    string
	RedisChannel string

	AudioBucket string
	AudioPrefix string

	Pipeline PipelineConfig
}

// PipelineConfig is the part of the configuration that may also come from
// the YAML file named by MINUTES_CONFIG.
type PipelineConfig struct {
	Extraction       steps.Policy `yaml:"extraction"`
	ScoreWorkers     int          `yaml:"score_workers"`
	BatchConcurrency int          `yaml:"batch_concurrency"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Extraction:       steps.DefaultPolicy(),
		ScoreWorkers:     4,
		BatchConcurrency: 2,
	}
}

func LoadConfig(log *logger.Logger) (Config, error) {
	pipe, err := LoadPipelineConfig(envutil.String("MINUTES_CONFIG", ""))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		Environment: envutil.String("APP_ENV", "development"),
		Port:        envutil.String("PORT", "8080"),
		CORSOrigins: envutil.String("CORS_ORIGINS", ""),
		DB: db.Config{
			Driver:      envutil.String("DB_DRIVER", db.DriverSQLite),
			SQLitePath:  envutil.String("SQLITE_PATH", "data/meetings.db"),
			PostgresDSN: envutil.String("POSTGRES_DSN", ""),
		},
		LLMProvider:  strings.ToLower(envutil.String("LLM_PROVIDER", LLMProviderOpenAI)),
		RedisAddr:    envutil.String("REDIS_ADDR", ""),
		RedisChannel: envutil.String("REDIS_CHANNEL", "meetings"),
		AudioBucket:  envutil.String("MEETING_AUDIO_GCS_BUCKET", ""),
		AudioPrefix:  envutil.String("MEETING_AUDIO_GCS_PREFIX", "audio"),
		Pipeline:     pipe,
	}
	switch cfg.LLMProvider {
	case LLMProviderOpenAI, LLMProviderLocal, LLMProviderNone:
	default:
		return Config{}, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
	if log != nil {
		log.Info("Configuration loaded",
			"db_driver", cfg.DB.Driver,
			"llm_provider", cfg.LLMProvider,
			"redis", cfg.RedisAddr != "",
			"max_retries", cfg.Pipeline.Extraction.MaxRetries,
			"chunk_chars", cfg.Pipeline.Extraction.ChunkChars,
		)
	}
	return cfg, nil
}

// LoadPipelineConfig applies defaults, then the YAML file at path (if any),
// then PIPELINE_* environment overrides.
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		var file struct {
			Pipeline PipelineConfig `yaml:"pipeline"`
		}
		file.Pipeline = cfg
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = file.Pipeline
	}

	p := &cfg.Extraction
	p.MaxRetries = envutil.Int("PIPELINE_MAX_RETRIES", p.MaxRetries)
	p.CallTimeout = envutil.Duration("PIPELINE_CALL_TIMEOUT", p.CallTimeout)
	p.BaseBackoff = envutil.Duration("PIPELINE_BASE_BACKOFF", p.BaseBackoff)
	p.MaxBackoff = envutil.Duration("PIPELINE_MAX_BACKOFF", p.MaxBackoff)
	p.ChunkChars = envutil.Int("PIPELINE_CHUNK_CHARS", p.ChunkChars)
	p.ExcerptChars = envutil.Int("PIPELINE_EXCERPT_CHARS", p.ExcerptChars)
	cfg.ScoreWorkers = envutil.Int("PIPELINE_SCORE_WORKERS", cfg.ScoreWorkers)
	cfg.BatchConcurrency = envutil.Int("PIPELINE_BATCH_CONCURRENCY", cfg.BatchConcurrency)

	if p.MaxRetries < 0 {
		return cfg, fmt.Errorf("pipeline.extraction.max_retries must be >= 0")
	}
	if cfg.ScoreWorkers < 1 {
		cfg.ScoreWorkers = 1
	}
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	return cfg, nil
}
