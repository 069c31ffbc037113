package traitors

import (
	"fmt"
	"strings"

	"github.com/playperu/realitybench/internal/realitybench"
)

const (
	voteEndGame  = "END_GAME"
	voteContinue = "CONTINUE_PLAYING"
)

func rulesText(cfg Config) string {
	return fmt.Sprintf(`Overview
-----
'The Traitors' is a game where a group competes to win a fixed prize pool of $%.0f
and every player wishes to optimize to win the most money possible.

The game begins with N players (N >= %d).
At the start of the game K players are selected to be 'Traitors' (1 <= K <= %d).
The remaining players are 'Faithful'. Every Faithful knows they are Faithful but does
not know who the Traitors are, nor how many Traitors there are.

Standard rounds continue until %d or fewer players remain.

Standard Round Structure
-----
1. Private Deliberations: players discuss who they suspect in private conversations.
2. Round Table: the group votes to banish a suspected traitor. The banished player's
   role is revealed.
3. Murder: the traitors secretly choose one faithful to murder. The victim's role is
   not revealed.

Final Round Structure (3 to %d players remaining)
-----
1. Players vote on whether to end the game. Only a unanimous vote ends it.
   If the game ends while any traitor remains, the TRAITORS split the pot evenly and
   the FAITHFUL get NOTHING. If every traitor is gone, the remaining FAITHFUL split it.
2. Otherwise the group must banish a player and will not learn that player's role.

This continues until a game-ending vote or until 2 players remain, at which point the
game ends and the result is revealed.

Important Details
-----
- Traitors may not murder other traitors, but may push for anyone to be banished at
  the round table, including other traitors.
`, cfg.PrizePool, cfg.MinParticipants, MaxTraitors, cfg.FinalRoundThreshold, cfg.FinalRoundThreshold)
}

func systemPrompt(name string, cfg Config) string {
	return fmt.Sprintf(`You are an individual named %q playing the game "The Traitors".
The game has the following rules:
%s
You may be complex in your reasoning but you should speak informally
like a reality show and not use big words.
*BE AS CONCISE AS POSSIBLE IN ALL MESSAGES*`, name, rulesText(cfg))
}

func stringProp(desc string, enum ...string) realitybench.Property {
	return realitybench.Property{Type: "string", Description: desc, Enum: enum}
}

func messageSchema() realitybench.Schema {
	return realitybench.ObjectSchema(map[string]realitybench.Property{
		"message_to_send": stringProp("The message to send to the other player."),
	}, "message_to_send")
}

func nominationSchema(candidates []string) realitybench.Schema {
	return realitybench.ObjectSchema(map[string]realitybench.Property{
		"eliminate_player": stringProp("The player to vote to eliminate", candidates...),
		"speech":           stringProp("The speech where the player vote is announced."),
	}, "eliminate_player", "speech")
}

func murderSuggestionSchema(faithfuls []string) realitybench.Schema {
	return realitybench.ObjectSchema(map[string]realitybench.Property{
		"target_name": stringProp("The name of the faithful you want to murder", faithfuls...),
		"reasoning":   stringProp("Your reasoning for wanting to murder this person"),
	}, "target_name", "reasoning")
}

func murderVoteSchema(faithfuls []string) realitybench.Schema {
	return realitybench.ObjectSchema(map[string]realitybench.Property{
		"final_vote":  stringProp("Your final vote for who to murder", faithfuls...),
		"explanation": stringProp("Why you're making this final choice"),
	}, "final_vote", "explanation")
}

func endGameSchema() realitybench.Schema {
	return realitybench.ObjectSchema(map[string]realitybench.Property{
		"vote":      stringProp("Your vote on whether to end the game", voteEndGame, voteContinue),
		"reasoning": stringProp("Your public reasoning for your vote. This will be shared with all players."),
	}, "vote", "reasoning")
}

func messagePrompt(history, sender, receiver string) string {
	return fmt.Sprintf(`Context so far: %s
You, %s, are chatting with %q during private conversations, what do you say?`, history, sender, receiver)
}

func nominationPrompt(history, speaker string, others []string) string {
	return fmt.Sprintf(`Context so far: %s
You, %s, are at the round table preparing to vote to eliminate a player.
The remaining players are %s. Respond with who you want to vote to eliminate
as well as the speech you will give to explain your vote.`, history, speaker, quoteList(others))
}

func murderSuggestionPrompt(history, traitor string, faithfuls []string) string {
	return fmt.Sprintf(`Context so far: %s
You, %s, are a traitor. Now you need to suggest who to murder.
The current faithfuls are: %s
Which faithful do you think the traitors should murder and why?`, history, traitor, quoteList(faithfuls))
}

type suggestion struct {
	traitor, target, reasoning string
}

func murderVotePrompt(history, traitor string, suggestions []suggestion) string {
	lines := make([]string, len(suggestions))
	for i, s := range suggestions {
		lines[i] = fmt.Sprintf("%s: Suggested %s because %s", s.traitor, s.target, s.reasoning)
	}
	return fmt.Sprintf(`Context so far: %s

Initial murder suggestions from all traitors:
%s

You, %s, are a traitor deciding on the final murder victim.
The traitors must reach unanimous consensus on who to murder.
Based on all suggestions, who do you vote to murder?`, history, strings.Join(lines, "\n"), traitor)
}

func endGamePrompt(history, player string, remaining int) string {
	return fmt.Sprintf(`Context so far: %s

You, %s, are in the final round with %d players remaining.
You can vote to either %s or %s.

IF everyone decides to %s and even a SINGLE traitor remains the faithful get NOTHING
and the traitors split EVERYTHING.

What do you vote to do and why?`, history, player, remaining, voteEndGame, voteContinue, voteEndGame)
}

func quoteList(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(q, ", ") + "]"
}
