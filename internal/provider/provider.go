package provider

import (
	"fmt"
	"log/slog"

	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/realitybench"
)

// FromConfig builds the provider selected by cfg.Provider.
func FromConfig(cfg *config.Config, logger *slog.Logger) (realitybench.Provider, error) {
	switch cfg.Provider {
	case config.ProviderRandom:
		return NewRandom(cfg.GameSeed()), nil
	case config.ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			MaxRetries:  cfg.ProviderMaxRetries,
			RetryDelay:  cfg.ProviderRetryDelay,
			Temperature: cfg.ProviderTemperature,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", realitybench.ErrConfiguration, cfg.Provider)
	}
}
