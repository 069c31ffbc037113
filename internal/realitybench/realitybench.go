// Package realitybench defines the core domain types shared by every game
// rule-set and the collaborator interfaces the engines depend on.
// It has no dependencies outside the standard library.
package realitybench

import "context"

type Faction string

const (
	FactionUnassigned Faction = ""
	FactionTraitor    Faction = "traitor"
	FactionFaithful   Faction = "faithful"
)

// Plural is the faction name used in result documents ("traitors", "faithfuls").
func (f Faction) Plural() string {
	if f == FactionUnassigned {
		return ""
	}
	return string(f) + "s"
}

type ParticipantConfig struct {
	Name       string         `json:"name"`
	Model      string         `json:"model"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Participant struct {
	Name       string
	Model      string
	Role       Faction
	Active     bool
	Properties map[string]any
}

// NewParticipants builds active, unassigned participants from configuration.
func NewParticipants(cfgs []ParticipantConfig) []*Participant {
	out := make([]*Participant, 0, len(cfgs))
	for _, c := range cfgs {
		props := make(map[string]any, len(c.Properties))
		for k, v := range c.Properties {
			props[k] = v
		}
		out = append(out, &Participant{
			Name:       c.Name,
			Model:      c.Model,
			Active:     true,
			Properties: props,
		})
	}
	return out
}

// Names returns participant names in slice order.
func Names(ps []*Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

// Game is the capability set every rule-set exposes to the runner.
type Game interface {
	Start(ctx context.Context) error
	Step(ctx context.Context) error
	IsFinished() bool
	Results() Results
}

type GameStatus string

const (
	StatusOngoing  GameStatus = "ongoing"
	StatusFinished GameStatus = "finished"
)

// Results is the document emitted once a run completes.
type Results struct {
	Status            GameStatus         `json:"status"`
	Rounds            int                `json:"rounds,omitempty"`
	WinnerType        string             `json:"winner_type,omitempty"`
	Eliminated        []string           `json:"eliminated,omitempty"`
	PrizeDistribution map[string]float64 `json:"prize_distribution,omitempty"`
	InitialFaithfuls  []string           `json:"initial_faithfuls,omitempty"`
	InitialTraitors   []string           `json:"initial_traitors,omitempty"`
}
