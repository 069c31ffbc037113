// Package runner drives games to completion. It builds a game from a game
// file, attaches the archive and relay sinks to its log and steps it until it
// finishes, rebuilding interrupted games from their archived records first.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/playperu/realitybench/internal/archive"
	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/games"
	"github.com/playperu/realitybench/internal/realitybench"
	"github.com/playperu/realitybench/internal/relay"
)

type Config struct {
	Registry *games.Registry
	Provider realitybench.Provider
	Logger   *slog.Logger
	// Archive and Relay are optional.
	Archive *archive.Store
	Relay   *relay.Publisher
	// Seed returns the seed for a new run. Nil means time-based seeds.
	Seed func() uint64
}

type Runner struct {
	registry *games.Registry
	provider realitybench.Provider
	logger   *slog.Logger
	archive  *archive.Store
	relay    *relay.Publisher
	seed     func() uint64
}

func New(cfg Config) *Runner {
	r := &Runner{
		registry: cfg.Registry,
		provider: cfg.Provider,
		logger:   cfg.Logger,
		archive:  cfg.Archive,
		relay:    cfg.Relay,
		seed:     cfg.Seed,
	}
	if r.registry == nil {
		r.registry = games.Default()
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.seed == nil {
		r.seed = func() uint64 { return rand.Uint64() }
	}
	return r
}

// Run is one prepared game.
type Run struct {
	ID   string
	File *config.Game
	Log  *eventlog.Store
	Game realitybench.Game
}

// Prepare builds a game from file over log, which may already hold records
// of an earlier attempt. A nil log starts empty. The run gets a fresh id and
// is archived, earlier records included, when an archive is configured.
func (r *Runner) Prepare(ctx context.Context, file *config.Game, log *eventlog.Store, sinks ...eventlog.Sink) (*Run, error) {
	id := uuid.NewString()
	if log == nil {
		log = eventlog.New()
	}

	g, err := r.build(id, file, log)
	if err != nil {
		return nil, err
	}

	if r.archive != nil {
		if err := r.archive.CreateGame(ctx, id, file.GameType, file.Params); err != nil {
			return nil, err
		}
		// Archive records from an earlier attempt before anything new lands.
		for _, rec := range log.Records() {
			if err := r.archive.AppendRecord(ctx, id, rec); err != nil {
				return nil, err
			}
		}
	}
	r.attach(id, log, sinks)
	return &Run{ID: id, File: file, Log: log, Game: g}, nil
}

// Resume rebuilds an archived game by replaying its records.
func (r *Runner) Resume(ctx context.Context, id string, sinks ...eventlog.Sink) (*Run, error) {
	if r.archive == nil {
		return nil, errors.New("resuming requires an archive")
	}
	stored, err := r.archive.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	file, err := config.ParseGame(stored.Config)
	if err != nil {
		return nil, err
	}
	log, err := r.archive.Log(ctx, id)
	if err != nil {
		return nil, err
	}

	g, err := r.build(id, file, log)
	if err != nil {
		return nil, err
	}
	if stored.Status != archive.StatusRunning {
		if err := r.archive.Resume(ctx, id); err != nil {
			return nil, err
		}
	}
	r.attach(id, log, sinks)
	r.logger.Info("resumed game", "game", id, "records", log.Len())
	return &Run{ID: id, File: file, Log: log, Game: g}, nil
}

// Rebuild reconstructs an archived game for inspection. The game has no
// provider and no sinks, so it must not be stepped.
func (r *Runner) Rebuild(ctx context.Context, id string) (*Run, error) {
	if r.archive == nil {
		return nil, errors.New("rebuilding requires an archive")
	}
	stored, err := r.archive.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	file, err := config.ParseGame(stored.Config)
	if err != nil {
		return nil, err
	}
	records, err := r.archive.Records(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.inspect(id, file, records)
}

// Snapshot replays a copy of a live run's log into a separate game, so its
// state can be read while the run keeps playing.
func (r *Runner) Snapshot(run *Run) (*Run, error) {
	return r.inspect(run.ID, run.File, run.Log.Records())
}

func (r *Runner) inspect(id string, file *config.Game, records []eventlog.Record) (*Run, error) {
	log := eventlog.New()
	if err := log.Import(records); err != nil {
		return nil, fmt.Errorf("restoring log of game %s: %w", id, err)
	}
	g, err := r.registry.New(file.GameType, file.Participants, file.Params, nil, games.Options{Log: log})
	if err != nil {
		return nil, err
	}
	return &Run{ID: id, File: file, Log: log, Game: g}, nil
}

func (r *Runner) build(id string, file *config.Game, log *eventlog.Store) (realitybench.Game, error) {
	seed := r.seed()
	return r.registry.New(file.GameType, file.Participants, file.Params, r.provider, games.Options{
		Log:    log,
		Rand:   rand.New(rand.NewPCG(seed, seed)),
		Logger: r.logger.With("game", id),
	})
}

func (r *Runner) attach(id string, log *eventlog.Store, extra []eventlog.Sink) {
	if r.archive != nil {
		log.AddSink(r.archive.Sink(id))
	}
	if r.relay != nil {
		log.AddSink(r.relay.Sink(id))
	}
	for _, s := range extra {
		log.AddSink(s)
	}
}

// Play steps run until the game finishes, calling onStep after every step.
// The outcome is archived; a run interrupted by ctx stays "running" so it is
// picked up again by Resume.
func (r *Runner) Play(ctx context.Context, run *Run, onStep func(*Run) error) (realitybench.Results, error) {
	res, err := r.play(ctx, run, onStep)
	if r.archive != nil {
		switch {
		case err != nil && ctx.Err() != nil:
			r.logger.Info("game interrupted", "game", run.ID, "records", run.Log.Len())
		case err != nil:
			if ferr := r.archive.Fail(ctx, run.ID, err); ferr != nil {
				r.logger.Error("archiving failure", "game", run.ID, "error", ferr)
			}
		default:
			if ferr := r.archive.Finish(ctx, run.ID, res); ferr != nil {
				return res, fmt.Errorf("archiving result: %w", ferr)
			}
		}
	}
	return res, err
}

func (r *Runner) play(ctx context.Context, run *Run, onStep func(*Run) error) (realitybench.Results, error) {
	logger := r.logger.With("game", run.ID)
	if err := run.Game.Start(ctx); err != nil {
		return realitybench.Results{}, fmt.Errorf("starting game: %w", err)
	}

	for !run.Game.IsFinished() {
		if err := ctx.Err(); err != nil {
			return realitybench.Results{}, err
		}
		if err := run.Game.Step(ctx); err != nil {
			logger.Error("step failed", "error", err)
			return realitybench.Results{}, err
		}
		if onStep != nil {
			if err := onStep(run); err != nil {
				return realitybench.Results{}, err
			}
		}
	}

	res := run.Game.Results()
	logger.Info("game complete", "winner", res.WinnerType, "rounds", res.Rounds)
	return res, nil
}

// MarshalResults renders the result document the way the batch surface
// prints it.
func MarshalResults(res realitybench.Results) ([]byte, error) {
	return json.MarshalIndent(res, "", "  ")
}
