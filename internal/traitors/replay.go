package traitors

import (
	"encoding/json"
	"fmt"

	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/realitybench"
)

// replay folds a persisted log into the game state. Only event records
// matter; prompts and queries are history for auditors.
func (g *Game) replay(records []eventlog.Record) error {
	var banishedIn, murderedIn int
	for _, rec := range records {
		if rec.Kind != eventlog.KindEvent {
			continue
		}
		var ev Event
		if err := json.Unmarshal(rec.Payload, &ev); err != nil {
			return fmt.Errorf("%w: record %d: %v", realitybench.ErrMalformedReplay, rec.ID, err)
		}
		if err := g.apply(ev); err != nil {
			return fmt.Errorf("record %d: %w", rec.ID, err)
		}
		g.round = max(g.round, ev.Round)
		switch ev.Type {
		case EventBanished:
			banishedIn = ev.Round
		case EventMurdered:
			murderedIn = ev.Round
		}
	}

	// A murder_decision without its murdered record is redone in full.
	g.interrupted = g.phase != PhaseFinished &&
		banishedIn > 0 && banishedIn == g.round && murderedIn < banishedIn

	switch {
	case g.phase == PhaseFinished, g.phase == PhaseNotStarted:
	case g.interrupted:
		g.phase = PhaseRound
	case g.round == 0:
		g.phase = PhaseStarted
	case g.isFinalRound():
		g.phase = PhaseFinalRound
	default:
		g.phase = PhaseRound
	}
	return nil
}

func (g *Game) apply(ev Event) error {
	switch {
	case ev.Type == EventStart:
		return g.applyStart(ev)

	case isElimination(ev.Type):
		if g.phase == PhaseNotStarted {
			return fmt.Errorf("%w: %s before start", realitybench.ErrMalformedReplay, ev.Type)
		}
		if ev.Target == "" {
			return fmt.Errorf("%w: %s without target", realitybench.ErrMalformedReplay, ev.Type)
		}
		// Unknown or already removed targets are tolerated.
		if p := g.byName[ev.Target]; p != nil {
			g.remove(p)
		}

	case ev.Type == EventGameEnd:
		g.phase = PhaseFinished
		g.reason = ev.Reason
		g.prizes = ev.PrizeDistribution
		if g.prizes == nil {
			g.prizes = map[string]float64{}
		}
		switch ev.Winners {
		case realitybench.FactionTraitor.Plural():
			g.winner = realitybench.FactionTraitor
		case realitybench.FactionFaithful.Plural():
			g.winner = realitybench.FactionFaithful
		default:
			return fmt.Errorf("%w: game_end with unknown winners %q", realitybench.ErrMalformedReplay, ev.Winners)
		}
	}
	return nil
}

// applyStart re-establishes the partition. The start event is the only
// source of truth for roles, so it must name every participant exactly once.
func (g *Game) applyStart(ev Event) error {
	if g.phase != PhaseNotStarted {
		return fmt.Errorf("%w: duplicate start event", realitybench.ErrMalformedReplay)
	}

	seen := make(map[string]bool, len(g.participants))
	take := func(names []string, role realitybench.Faction) error {
		for _, name := range names {
			p := g.byName[name]
			if p == nil {
				return fmt.Errorf("%w: start names unknown participant %q", realitybench.ErrMalformedReplay, name)
			}
			if seen[name] {
				return fmt.Errorf("%w: start names %q twice", realitybench.ErrMalformedReplay, name)
			}
			seen[name] = true
			g.assign(p, role)
		}
		return nil
	}

	if err := take(ev.Traitors, realitybench.FactionTraitor); err != nil {
		return err
	}
	if err := take(ev.Faithfuls, realitybench.FactionFaithful); err != nil {
		return err
	}
	if len(seen) != len(g.participants) {
		return fmt.Errorf("%w: start partitions %d of %d participants", realitybench.ErrMalformedReplay, len(seen), len(g.participants))
	}

	g.initialTraitors = realitybench.Names(g.traitors)
	g.initialFaithfuls = realitybench.Names(g.faithfuls)
	g.phase = PhaseStarted
	return nil
}
