package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/realitybench/internal/archive"
	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/runner"
)

// ErrAlreadyPlaying is returned when resuming a game this process is
// already playing or resuming.
var ErrAlreadyPlaying = errors.New("game is already playing")

// Games tracks the runs playing in this process. Each run plays in its own
// goroutine and owns its log; finished runs are dropped and served from the
// archive instead.
type Games struct {
	ctx     context.Context
	runner  *runner.Runner
	archive *archive.Store
	broker  *Broker
	logger  *slog.Logger

	group errgroup.Group
	mu    sync.RWMutex
	runs  map[string]*runner.Run

	// resuming holds ids between the playing check and launch.
	resuming map[string]bool
}

// NewGames plays runs under ctx; cancelling it interrupts every run, leaving
// them resumable.
func NewGames(ctx context.Context, r *runner.Runner, store *archive.Store, logger *slog.Logger) *Games {
	return &Games{
		ctx:     ctx,
		runner:  r,
		archive: store,
		broker:  NewBroker(),
		logger:  logger,
		runs:    make(map[string]*runner.Run),

		resuming: make(map[string]bool),
	}
}

func (g *Games) Broker() *Broker { return g.broker }

func (g *Games) Get(id string) (*runner.Run, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	run, ok := g.runs[id]
	return run, ok
}

// Start prepares a new run from file and plays it in the background.
func (g *Games) Start(ctx context.Context, file *config.Game) (*runner.Run, error) {
	run, err := g.runner.Prepare(ctx, file, nil)
	if err != nil {
		return nil, err
	}
	g.launch(run)
	return run, nil
}

// Resume rebuilds an archived run and plays it to the end in the background.
// The id is reserved before replay so two callers never both play it.
func (g *Games) Resume(ctx context.Context, id string) (*runner.Run, error) {
	g.mu.Lock()
	_, playing := g.runs[id]
	if playing || g.resuming[id] {
		g.mu.Unlock()
		return nil, fmt.Errorf("game %s: %w", id, ErrAlreadyPlaying)
	}
	g.resuming[id] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.resuming, id)
		g.mu.Unlock()
	}()

	run, err := g.runner.Resume(ctx, id)
	if err != nil {
		return nil, err
	}
	g.launch(run)
	return run, nil
}

// ResumeRunning resumes every archived game still marked running, which
// after a restart means every game the previous process left unfinished.
func (g *Games) ResumeRunning(ctx context.Context) error {
	stored, err := g.archive.ListGames(ctx, archive.StatusRunning)
	if err != nil {
		return err
	}
	for _, sg := range stored {
		if _, err := g.Resume(ctx, sg.ID); err != nil {
			g.logger.Error("resuming game", "game", sg.ID, "error", err)
		}
	}
	return nil
}

func (g *Games) launch(run *runner.Run) {
	run.Log.AddSink(g.broker.Sink(run.ID))

	g.mu.Lock()
	g.runs[run.ID] = run
	g.mu.Unlock()

	g.group.Go(func() error {
		defer func() {
			g.mu.Lock()
			delete(g.runs, run.ID)
			g.mu.Unlock()
			g.broker.Close(run.ID)
		}()

		// A failed game is archived as failed; it must not stop the others.
		if _, err := g.runner.Play(g.ctx, run, nil); err != nil {
			g.logger.Error("game stopped", "game", run.ID, "error", err)
		}
		return nil
	})
}

// Wait blocks until every run has returned.
func (g *Games) Wait() error {
	return g.group.Wait()
}
