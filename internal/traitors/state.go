package traitors

import (
	"maps"
	"slices"

	"github.com/playperu/realitybench/internal/realitybench"
)

// State is a snapshot of everything derived from the log.
type State struct {
	Round             int                  `json:"round"`
	Phase             Phase                `json:"phase"`
	Traitors          []string             `json:"traitors"`
	Faithfuls         []string             `json:"faithfuls"`
	Eliminated        []string             `json:"eliminated"`
	InitialTraitors   []string             `json:"initial_traitors"`
	InitialFaithfuls  []string             `json:"initial_faithfuls"`
	Finished          bool                 `json:"finished"`
	Winner            realitybench.Faction `json:"winner,omitempty"`
	Reason            string               `json:"reason,omitempty"`
	PrizeDistribution map[string]float64   `json:"prize_distribution,omitempty"`
}

func (g *Game) State() State {
	return State{
		Round:             g.round,
		Phase:             g.phase,
		Traitors:          realitybench.Names(g.traitors),
		Faithfuls:         realitybench.Names(g.faithfuls),
		Eliminated:        realitybench.Names(g.eliminated),
		InitialTraitors:   slices.Clone(g.initialTraitors),
		InitialFaithfuls:  slices.Clone(g.initialFaithfuls),
		Finished:          g.phase == PhaseFinished,
		Winner:            g.winner,
		Reason:            g.reason,
		PrizeDistribution: maps.Clone(g.prizes),
	}
}

// Results is the batch result document; "ongoing" until the game ends.
func (g *Game) Results() realitybench.Results {
	if g.phase != PhaseFinished {
		return realitybench.Results{Status: realitybench.StatusOngoing}
	}
	prizes := maps.Clone(g.prizes)
	if prizes == nil {
		prizes = map[string]float64{}
	}
	return realitybench.Results{
		Status:            realitybench.StatusFinished,
		Rounds:            g.round,
		WinnerType:        g.winner.Plural(),
		Eliminated:        realitybench.Names(g.eliminated),
		PrizeDistribution: prizes,
		InitialFaithfuls:  slices.Clone(g.initialFaithfuls),
		InitialTraitors:   slices.Clone(g.initialTraitors),
	}
}
