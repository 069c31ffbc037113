// Package traitors implements "The Traitors" rule-set: a phase state machine
// that splits participants into hidden factions and runs rounds of private
// deliberation, public banishment and covert murder until an endgame vote or
// the final two players settle the winner.
//
// The engine owns its event log. Every decision, announcement and roster
// change is appended to it, and a Game constructed over a non-empty log
// rebuilds its state by replay before play continues.
package traitors

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/prize"
	"github.com/playperu/realitybench/internal/realitybench"
)

type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseStarted    Phase = "started"
	PhaseRound      Phase = "round_active"
	PhaseFinalRound Phase = "final_round_active"
	PhaseFinished   Phase = "finished"
)

type Game struct {
	cfg      Config
	provider realitybench.Provider
	log      *eventlog.Store
	rng      *rand.Rand
	logger   *slog.Logger

	participants []*realitybench.Participant
	byName       map[string]*realitybench.Participant

	round      int
	phase      Phase
	traitors   []*realitybench.Participant
	faithfuls  []*realitybench.Participant
	eliminated []*realitybench.Participant

	// interrupted marks a replayed round whose murder never happened.
	interrupted bool

	initialTraitors  []string
	initialFaithfuls []string

	winner realitybench.Faction
	reason string
	prizes map[string]float64
}

type Option func(*Game)

// WithLog hands the game an existing log. A non-empty log is replayed.
func WithLog(log *eventlog.Store) Option {
	return func(g *Game) { g.log = log }
}

// WithRand sets the source for role assignment, pairing, shuffles and
// tie-breaks.
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) { g.rng = rng }
}

// WithSeed is WithRand over a PCG source seeded with seed.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed)))
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Game) { g.logger = logger }
}

// New builds a game for cfg. When the log already holds records the game
// state is rebuilt from them without consulting the provider.
func New(cfg Config, provider realitybench.Provider, opts ...Option) (*Game, error) {
	g := &Game{
		cfg:          cfg,
		provider:     provider,
		phase:        PhaseNotStarted,
		participants: realitybench.NewParticipants(cfg.Participants),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = eventlog.New()
	}
	if g.rng == nil {
		seed := uint64(time.Now().UnixNano())
		g.rng = rand.New(rand.NewPCG(seed, seed))
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}

	g.byName = make(map[string]*realitybench.Participant, len(g.participants))
	for _, p := range g.participants {
		g.byName[p.Name] = p
	}

	if g.log.Len() > 0 {
		if err := g.replay(g.log.Records()); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Log returns the game's event log.
func (g *Game) Log() *eventlog.Store { return g.log }

func (g *Game) IsFinished() bool { return g.phase == PhaseFinished }

func (g *Game) Phase() Phase { return g.phase }

func (g *Game) Round() int { return g.round }

// Start validates the configuration, assigns factions and records the
// partition. Starting an already started game is a no-op.
func (g *Game) Start(ctx context.Context) error {
	if g.phase != PhaseNotStarted {
		return nil
	}
	if err := g.cfg.Validate(); err != nil {
		return err
	}

	picked := make(map[int]bool, g.cfg.TraitorCount)
	for _, i := range g.rng.Perm(len(g.participants))[:g.cfg.TraitorCount] {
		picked[i] = true
	}

	for i, p := range g.participants {
		role := realitybench.FactionFaithful
		if picked[i] {
			role = realitybench.FactionTraitor
		}
		g.assign(p, role)

		if err := g.record(ctx, Event{
			Type:    EventRoleSelected,
			Text:    fmt.Sprintf("%q selected as a %s.", p.Name, role),
			Actor:   p.Name,
			Faction: role,
		}, eventlog.VisibleTo(p.Name)); err != nil {
			return err
		}
	}

	names := realitybench.Names(g.participants)
	slices.Sort(names)
	g.initialTraitors = realitybench.Names(g.traitors)
	g.initialFaithfuls = realitybench.Names(g.faithfuls)

	if err := g.record(ctx, Event{
		Type:      EventStart,
		Text:      fmt.Sprintf("Game started with the following players: %s", quoteList(names)),
		Players:   names,
		Traitors:  g.initialTraitors,
		Faithfuls: g.initialFaithfuls,
	}, g.publicTags()); err != nil {
		return err
	}

	g.phase = PhaseStarted
	g.logger.Info("game started",
		"participants", len(g.participants),
		"traitors", len(g.traitors),
	)
	return nil
}

// Step runs one round, starting the game first if needed. A game rebuilt
// from a cut log first settles what the log left open: a roster that already
// ends the game only gets its game_end, and a round stopped after its round
// table gets its murder.
func (g *Game) Step(ctx context.Context) error {
	switch g.phase {
	case PhaseNotStarted:
		return g.Start(ctx)
	case PhaseFinished:
		return nil
	}

	if done, err := g.checkEnd(ctx); done || err != nil {
		return err
	}
	if g.interrupted {
		g.interrupted = false
		g.logger.Info("resuming round", "round", g.round, "active", g.activeCount())
		if err := g.runMurder(ctx); err != nil {
			return err
		}
		_, err := g.checkEnd(ctx)
		return err
	}

	g.round++
	if g.isFinalRound() {
		g.phase = PhaseFinalRound
		g.logger.Info("final round", "round", g.round, "active", g.activeCount())
		return g.runFinalRound(ctx)
	}

	g.phase = PhaseRound
	g.logger.Info("round", "round", g.round, "active", g.activeCount())
	return g.runRegularRound(ctx)
}

func (g *Game) isFinalRound() bool {
	n := g.activeCount()
	return n >= 3 && n <= g.cfg.FinalRoundThreshold
}

func (g *Game) activeCount() int { return len(g.traitors) + len(g.faithfuls) }

// active lists active participants in configuration order.
func (g *Game) active() []*realitybench.Participant {
	out := make([]*realitybench.Participant, 0, g.activeCount())
	for _, p := range g.participants {
		if p.Active && p.Role != realitybench.FactionUnassigned {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) shuffled(ps []*realitybench.Participant) []*realitybench.Participant {
	out := slices.Clone(ps)
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// publicTags makes a record visible to every currently active participant.
func (g *Game) publicTags() eventlog.Tags {
	return eventlog.VisibleTo(realitybench.Names(g.active())...)
}

func (g *Game) traitorTags() eventlog.Tags {
	return eventlog.VisibleTo(realitybench.Names(g.traitors)...)
}

func (g *Game) record(ctx context.Context, ev Event, tags eventlog.Tags) error {
	ev.Round = g.round
	if _, err := g.log.Event(ctx, ev, tags); err != nil {
		return fmt.Errorf("recording %s: %w", ev.Type, err)
	}
	return nil
}

func (g *Game) assign(p *realitybench.Participant, role realitybench.Faction) {
	p.Role = role
	p.Properties["role"] = string(role)
	if role == realitybench.FactionTraitor {
		g.traitors = append(g.traitors, p)
	} else {
		g.faithfuls = append(g.faithfuls, p)
	}
}

// remove moves p from its faction to the eliminated list. It reports false,
// changing nothing, when p is not active.
func (g *Game) remove(p *realitybench.Participant) bool {
	if i := slices.Index(g.traitors, p); i >= 0 {
		g.traitors = slices.Delete(g.traitors, i, i+1)
	} else if i := slices.Index(g.faithfuls, p); i >= 0 {
		g.faithfuls = slices.Delete(g.faithfuls, i, i+1)
	} else {
		return false
	}
	g.eliminated = append(g.eliminated, p)
	p.Active = false
	return true
}

// checkEnd applies the forced termination rules after a roster change. An
// empty traitor set never ends the game on its own: the faithful are not
// told how many traitors there were.
func (g *Game) checkEnd(ctx context.Context) (bool, error) {
	if g.phase == PhaseFinished {
		return true, nil
	}

	if g.activeCount() <= 2 {
		if len(g.traitors) > 0 {
			return true, g.finish(ctx, realitybench.FactionTraitor, ReasonFinalTwoPlayers,
				"Game over! Only 2 players remain and at least one is a traitor. Traitors win!")
		}
		return true, g.finish(ctx, realitybench.FactionFaithful, ReasonFinalTwoPlayers,
			"Game over! Only faithfuls remain. Faithfuls win!")
	}

	if len(g.faithfuls) == 0 {
		return true, g.finish(ctx, realitybench.FactionTraitor, ReasonFaithfulsEliminated,
			"Oh no, Traitors win! All Faithfuls have been eliminated.")
	}
	return false, nil
}

func (g *Game) finish(ctx context.Context, winner realitybench.Faction, reason, message string) error {
	winners := g.faithfuls
	if winner == realitybench.FactionTraitor {
		winners = g.traitors
	}

	g.phase = PhaseFinished
	g.winner = winner
	g.reason = reason
	g.prizes = prize.Split(g.cfg.PrizePool, realitybench.Names(winners))

	g.logger.Info("game finished",
		"round", g.round,
		"winner", winner.Plural(),
		"reason", reason,
	)

	return g.record(ctx, Event{
		Type:              EventGameEnd,
		Text:              message,
		Winners:           winner.Plural(),
		Reason:            reason,
		PrizeDistribution: g.prizes,
	}, g.publicTags())
}
