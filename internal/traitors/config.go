package traitors

import (
	"encoding/json"
	"fmt"

	"github.com/playperu/realitybench/internal/prize"
	"github.com/playperu/realitybench/internal/realitybench"
)

// GameType is the registry key of this rule-set.
const GameType = "THE_TRAITORS"

const (
	MaxTraitors                = 5
	DefaultMinParticipants     = 7
	DefaultFinalRoundThreshold = 4
	DefaultMaxConversations    = 4
	DefaultMaxMessages         = 5
)

type Config struct {
	Participants        []realitybench.ParticipantConfig `json:"participants"`
	TraitorCount        int                              `json:"traitor_count"`
	PrizePool           float64                          `json:"prize_pool"`
	FinalRoundThreshold int                              `json:"final_round_threshold"`
	MinParticipants     int                              `json:"min_participants"`
	RequireOdd          bool                             `json:"require_odd"`
	MaxConversations    int                              `json:"max_conversations"`
	MaxMessages         int                              `json:"max_messages"`
}

// DefaultConfig returns the standard rules with no participants.
func DefaultConfig() Config {
	return Config{
		PrizePool:           prize.DefaultPool,
		FinalRoundThreshold: DefaultFinalRoundThreshold,
		MinParticipants:     DefaultMinParticipants,
		RequireOdd:          true,
		MaxConversations:    DefaultMaxConversations,
		MaxMessages:         DefaultMaxMessages,
	}
}

// ParseConfig reads rule parameters from a game file body. traitor_count is
// mandatory; everything else falls back to DefaultConfig.
func ParseConfig(participants []realitybench.ParticipantConfig, raw json.RawMessage) (Config, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Config{}, fmt.Errorf("%w: decoding game parameters: %v", realitybench.ErrConfiguration, err)
	}
	if _, ok := probe["traitor_count"]; !ok {
		return Config{}, fmt.Errorf("%w: %s config must contain 'traitor_count'", realitybench.ErrConfiguration, GameType)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: decoding game parameters: %v", realitybench.ErrConfiguration, err)
	}
	cfg.Participants = participants

	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.Name == "" {
			return Config{}, fmt.Errorf("%w: participant with empty name", realitybench.ErrConfiguration)
		}
		if seen[p.Name] {
			return Config{}, fmt.Errorf("%w: duplicate participant %q", realitybench.ErrConfiguration, p.Name)
		}
		seen[p.Name] = true
	}
	return cfg, nil
}

// Validate enforces the participant and faction-size rules checked at start.
func (c Config) Validate() error {
	n := len(c.Participants)
	switch {
	case n < c.MinParticipants:
		return fmt.Errorf("%w: %d participants, at least %d required", realitybench.ErrConfiguration, n, c.MinParticipants)
	case c.RequireOdd && n%2 != 1:
		return fmt.Errorf("%w: an odd number of participants is required, got %d", realitybench.ErrConfiguration, n)
	case c.TraitorCount < 1 || c.TraitorCount > MaxTraitors:
		return fmt.Errorf("%w: traitor_count %d outside 1..%d", realitybench.ErrConfiguration, c.TraitorCount, MaxTraitors)
	case c.TraitorCount >= n:
		return fmt.Errorf("%w: traitor_count %d must be below participant count %d", realitybench.ErrConfiguration, c.TraitorCount, n)
	case c.MaxMessages < 1:
		return fmt.Errorf("%w: max_messages must be positive", realitybench.ErrConfiguration)
	case c.MaxConversations < 0:
		return fmt.Errorf("%w: max_conversations must not be negative", realitybench.ErrConfiguration)
	case c.PrizePool < 0:
		return fmt.Errorf("%w: prize_pool must not be negative", realitybench.ErrConfiguration)
	}
	return nil
}
