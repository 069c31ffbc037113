package traitors

import (
	"context"
	"fmt"
	"slices"

	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/realitybench"
	"github.com/playperu/realitybench/internal/vote"
)

func (g *Game) runRegularRound(ctx context.Context) error {
	if err := g.runPrivateDeliberations(ctx); err != nil {
		return err
	}
	if err := g.runRoundTable(ctx); err != nil {
		return err
	}
	if done, err := g.checkEnd(ctx); done || err != nil {
		return err
	}
	if err := g.runMurder(ctx); err != nil {
		return err
	}
	_, err := g.checkEnd(ctx)
	return err
}

// runPrivateDeliberations pairs up active players for short private
// exchanges. Pairs are drawn independently, so the same two players may talk
// twice in one round.
func (g *Game) runPrivateDeliberations(ctx context.Context) error {
	active := g.active()
	n := min(g.cfg.MaxConversations, len(active))
	for range n {
		if len(active) < 2 {
			break
		}
		idx := g.rng.Perm(len(active))
		messages := 1 + g.rng.IntN(g.cfg.MaxMessages)
		if err := g.converse(ctx, active[idx[0]], active[idx[1]], messages); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) converse(ctx context.Context, a, b *realitybench.Participant, messages int) error {
	tags := eventlog.VisibleTo(a.Name, b.Name)
	sender, receiver := a, b
	for range messages {
		history, err := g.contextFor(ctx, sender)
		if err != nil {
			return err
		}
		res, err := g.ask(ctx, sender, messagePrompt(history, sender.Name, receiver.Name), messageSchema())
		if err != nil {
			return err
		}

		msg := res["message_to_send"]
		if err := g.record(ctx, Event{
			Type:   EventPrivateMessage,
			Text:   fmt.Sprintf("%s messaged %s: %q", sender.Name, receiver.Name, msg),
			Actor:  sender.Name,
			Target: receiver.Name,
		}, tags); err != nil {
			return err
		}
		sender, receiver = receiver, sender
	}
	return nil
}

// collectNominations runs one public speech-and-vote per active player in
// shuffled order and returns voter→target.
func (g *Game) collectNominations(ctx context.Context, speechType, voteType string) (map[string]string, error) {
	active := g.active()
	votes := make(map[string]string, len(active))

	for _, speaker := range g.shuffled(active) {
		others := slices.DeleteFunc(slices.Clone(active), func(p *realitybench.Participant) bool { return p == speaker })
		target, speech, err := g.nominate(ctx, speaker, others)
		if err != nil {
			return nil, err
		}
		votes[speaker.Name] = target.Name

		if err := g.record(ctx, Event{
			Type:  speechType,
			Text:  fmt.Sprintf("%s said: %q", speaker.Name, speech),
			Actor: speaker.Name,
		}, g.publicTags()); err != nil {
			return nil, err
		}
		if err := g.record(ctx, Event{
			Type:   voteType,
			Text:   fmt.Sprintf("%s voted to eliminate %s", speaker.Name, target.Name),
			Actor:  speaker.Name,
			Target: target.Name,
		}, g.publicTags()); err != nil {
			return nil, err
		}
	}
	return votes, nil
}

// runRoundTable banishes the most-voted player and reveals their faction.
func (g *Game) runRoundTable(ctx context.Context) error {
	votes, err := g.collectNominations(ctx, EventRoundTableSpeech, EventRoundTableVote)
	if err != nil {
		return err
	}

	name, count := vote.Tally(votes, g.rng)
	banished := g.byName[name]
	if banished == nil {
		return fmt.Errorf("round table produced no target from %d votes", len(votes))
	}

	tags := g.publicTags()
	role := banished.Role
	g.remove(banished)

	verdict := "WAS NOT a traitor"
	if role == realitybench.FactionTraitor {
		verdict = "WAS a traitor"
	}
	g.logger.Info("banished", "round", g.round, "target", name, "votes", count, "faction", role)

	return g.record(ctx, Event{
		Type:    EventBanished,
		Text:    fmt.Sprintf("%s was BANISHED with %d votes. %s %s", name, count, name, verdict),
		Target:  name,
		Faction: role,
		Votes:   count,
	}, tags)
}

// runMurder lets the traitors pick a faithful in two passes: individual
// suggestions, then a final vote after seeing every suggestion. The victim's
// faction is not announced.
func (g *Game) runMurder(ctx context.Context) error {
	if len(g.traitors) == 0 || len(g.faithfuls) == 0 {
		return nil
	}

	faithfuls := realitybench.Names(g.faithfuls)
	slices.Sort(faithfuls)
	conspirators := slices.Clone(g.traitors)

	suggestions := make([]suggestion, 0, len(conspirators))
	for _, t := range conspirators {
		history, err := g.contextFor(ctx, t)
		if err != nil {
			return err
		}
		res, err := g.ask(ctx, t, murderSuggestionPrompt(history, t.Name, faithfuls), murderSuggestionSchema(faithfuls))
		if err != nil {
			return err
		}
		s := suggestion{traitor: t.Name, target: res["target_name"], reasoning: res["reasoning"]}
		suggestions = append(suggestions, s)

		if err := g.record(ctx, Event{
			Type:   EventMurderSuggestion,
			Text:   fmt.Sprintf("%s suggests murdering %s: %s", t.Name, s.target, s.reasoning),
			Actor:  t.Name,
			Target: s.target,
		}, g.traitorTags()); err != nil {
			return err
		}
	}

	votes := make(map[string]string, len(conspirators))
	for _, t := range conspirators {
		history, err := g.contextFor(ctx, t)
		if err != nil {
			return err
		}
		res, err := g.ask(ctx, t, murderVotePrompt(history, t.Name, suggestions), murderVoteSchema(faithfuls))
		if err != nil {
			return err
		}
		votes[t.Name] = res["final_vote"]

		if err := g.record(ctx, Event{
			Type:   EventMurderVote,
			Text:   fmt.Sprintf("%s votes to murder %s: %s", t.Name, res["final_vote"], res["explanation"]),
			Actor:  t.Name,
			Target: res["final_vote"],
		}, g.traitorTags()); err != nil {
			return err
		}
	}

	victim := g.murderTarget(realitybench.Names(conspirators), votes)

	if err := g.record(ctx, Event{
		Type:   EventMurderDecision,
		Text:   fmt.Sprintf("The traitors have decided to murder %s", victim.Name),
		Target: victim.Name,
	}, g.traitorTags()); err != nil {
		return err
	}

	tags := g.publicTags()
	g.remove(victim)
	g.logger.Info("murdered", "round", g.round, "target", victim.Name)

	return g.record(ctx, Event{
		Type:   EventMurdered,
		Text:   fmt.Sprintf("%s was MURDERED by the traitors.", victim.Name),
		Target: victim.Name,
	}, tags)
}

// murderTarget resolves the traitors' final votes. The first name to reach
// the highest count wins; when that yields nobody who is still faithful
// (including when no votes were cast) a random faithful is chosen instead.
func (g *Game) murderTarget(voters []string, votes map[string]string) *realitybench.Participant {
	name, _ := vote.Plurality(voters, votes)
	if p := g.byName[name]; p != nil && slices.Contains(g.faithfuls, p) {
		return p
	}
	return g.faithfuls[g.rng.IntN(len(g.faithfuls))]
}

func (g *Game) runFinalRound(ctx context.Context) error {
	ended, err := g.runVoteToEnd(ctx)
	if err != nil || ended {
		return err
	}
	if err := g.runFinalElimination(ctx); err != nil {
		return err
	}
	_, err = g.checkEnd(ctx)
	return err
}

// runVoteToEnd asks every active player to end or continue. A unanimous
// END_GAME finishes the game; traitors win if any remain.
func (g *Game) runVoteToEnd(ctx context.Context) (bool, error) {
	active := g.shuffled(g.active())

	if err := g.record(ctx, Event{
		Type: EventFinalRoundAnnouncement,
		Text: fmt.Sprintf("Final round! With %d players remaining, the group must decide whether to end the game or eliminate another player.", len(active)),
	}, g.publicTags()); err != nil {
		return false, err
	}

	endVotes := 0
	for _, p := range active {
		history, err := g.contextFor(ctx, p)
		if err != nil {
			return false, err
		}
		res, err := g.ask(ctx, p, endGamePrompt(history, p.Name, len(active)), endGameSchema())
		if err != nil {
			return false, err
		}
		if res["vote"] == voteEndGame {
			endVotes++
		}
		if err := g.record(ctx, Event{
			Type:  EventFinalRoundVoteToEnd,
			Text:  fmt.Sprintf("%s votes to %s: %s", p.Name, res["vote"], res["reasoning"]),
			Actor: p.Name,
		}, g.publicTags()); err != nil {
			return false, err
		}
	}

	if endVotes == len(active) {
		if len(g.traitors) > 0 {
			return true, g.finish(ctx, realitybench.FactionTraitor, ReasonUnanimousVote, "Game ended by unanimous vote. Traitors win!")
		}
		return true, g.finish(ctx, realitybench.FactionFaithful, ReasonUnanimousVote, "Game ended by unanimous vote. Faithfuls win!")
	}

	return false, g.record(ctx, Event{
		Type: EventFinalRoundContinue,
		Text: fmt.Sprintf("The vote was not unanimous. %d player(s) voted to end, %d to continue. The game will continue.",
			endVotes, len(active)-endVotes),
	}, g.publicTags())
}

// runFinalElimination banishes one player without revealing their faction.
func (g *Game) runFinalElimination(ctx context.Context) error {
	votes, err := g.collectNominations(ctx, EventFinalRoundSpeech, EventFinalRoundVote)
	if err != nil {
		return err
	}

	name, count := vote.Tally(votes, g.rng)
	banished := g.byName[name]
	if banished == nil {
		return fmt.Errorf("final elimination produced no target from %d votes", len(votes))
	}

	tags := g.publicTags()
	g.remove(banished)
	g.logger.Info("banished without reveal", "round", g.round, "target", name, "votes", count)

	return g.record(ctx, Event{
		Type:   EventFinalBanished,
		Text:   fmt.Sprintf("%s was BANISHED with %d votes. Their role remains hidden.", name, count),
		Target: name,
		Votes:  count,
	}, tags)
}
