package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/playperu/realitybench/internal/realitybench"
)

// Game is a game file: the envelope fields plus the whole document, from
// which the rule-set reads its own parameters.
type Game struct {
	GameType     string                           `json:"game_type"`
	Participants []realitybench.ParticipantConfig `json:"participants"`
	Params       json.RawMessage                  `json:"-"`
}

func LoadGame(path string) (*Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading game file: %w", err)
	}
	return ParseGame(data)
}

func ParseGame(data []byte) (*Game, error) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: decoding game file: %v", realitybench.ErrConfiguration, err)
	}
	if g.GameType == "" {
		return nil, fmt.Errorf("%w: game file must contain 'game_type'", realitybench.ErrConfiguration)
	}
	if len(g.Participants) == 0 {
		return nil, fmt.Errorf("%w: game file lists no participants", realitybench.ErrConfiguration)
	}
	for i, p := range g.Participants {
		if p.Model == "" {
			return nil, fmt.Errorf("%w: participant %d (%q) has no model", realitybench.ErrConfiguration, i, p.Name)
		}
	}
	g.Params = json.RawMessage(data)
	return &g, nil
}
