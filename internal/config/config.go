package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/realitybench.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	RedisURL string     `env:"REDIS_URL"`

	Provider            string        `env:"PROVIDER" envDefault:"openai"`
	OpenAIBaseURL       string        `env:"OPENAI_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	OpenAIAPIKey        string        `env:"OPENAI_API_KEY"`
	ProviderMaxRetries  int           `env:"PROVIDER_MAX_RETRIES" envDefault:"12"`
	ProviderRetryDelay  time.Duration `env:"PROVIDER_RETRY_DELAY" envDefault:"5s"`
	ProviderTemperature float32       `env:"PROVIDER_TEMPERATURE" envDefault:"0.8"`

	// Seed drives role assignment and every other random choice. Zero means
	// a time-based seed.
	Seed uint64 `env:"SEED" envDefault:"0"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	switch cfg.Provider {
	case ProviderOpenAI, ProviderRandom:
	default:
		return nil, fmt.Errorf("unknown PROVIDER %q (want %s or %s)", cfg.Provider, ProviderOpenAI, ProviderRandom)
	}
	return &cfg, nil
}

const (
	ProviderOpenAI = "openai"
	ProviderRandom = "random"
)

// GameSeed returns Seed, or a time-based seed when Seed is zero.
func (c *Config) GameSeed() uint64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return uint64(time.Now().UnixNano())
}
