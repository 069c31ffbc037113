package traitors

import "github.com/playperu/realitybench/internal/realitybench"

// Event types recorded by the engine.
const (
	EventRoleSelected           = "role_selected"
	EventStart                  = "start"
	EventPrivateMessage         = "private_message"
	EventRoundTableSpeech       = "round_table_speech"
	EventRoundTableVote         = "round_table_vote"
	EventBanished               = "banished"
	EventMurderSuggestion       = "murder_suggestion"
	EventMurderVote             = "murder_vote"
	EventMurderDecision         = "murder_decision"
	EventMurdered               = "murdered"
	EventFinalRoundAnnouncement = "final_round_announcement"
	EventFinalRoundVoteToEnd    = "final_round_vote_to_end"
	EventFinalRoundContinue     = "final_round_continue"
	EventFinalRoundSpeech       = "final_round_speech"
	EventFinalRoundVote         = "final_round_vote"
	EventFinalBanished          = "final_banished"
	EventGameEnd                = "game_end"
)

// Reasons a game ends.
const (
	ReasonUnanimousVote       = "unanimous_vote"
	ReasonFinalTwoPlayers     = "final_two_players"
	ReasonFaithfulsEliminated = "faithfuls_eliminated"
)

// Event is the payload of every event record. Target is the structured
// participant reference replay relies on; Text is for humans and agents.
type Event struct {
	Type              string               `json:"type"`
	Text              string               `json:"text"`
	Round             int                  `json:"round"`
	Actor             string               `json:"actor,omitempty"`
	Target            string               `json:"target,omitempty"`
	Faction           realitybench.Faction `json:"faction,omitempty"`
	Votes             int                  `json:"votes,omitempty"`
	Players           []string             `json:"players,omitempty"`
	Traitors          []string             `json:"traitors,omitempty"`
	Faithfuls         []string             `json:"faithfuls,omitempty"`
	Winners           string               `json:"winners,omitempty"`
	Reason            string               `json:"reason,omitempty"`
	PrizeDistribution map[string]float64   `json:"prize_distribution,omitempty"`
}

func isElimination(typ string) bool {
	return typ == EventBanished || typ == EventFinalBanished || typ == EventMurdered
}
