// Package games maps game type names from game files to the rule-sets that
// implement them.
package games

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/realitybench"
	"github.com/playperu/realitybench/internal/traitors"
)

// Options carries the collaborators every rule-set accepts. Zero values are
// replaced by the rule-set's defaults.
type Options struct {
	Log    *eventlog.Store
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Builder parses rule-set parameters, validates them and constructs a game.
// A non-empty Options.Log is replayed by the constructed game.
type Builder func(participants []realitybench.ParticipantConfig, params json.RawMessage, provider realitybench.Provider, opts Options) (realitybench.Game, error)

type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Default returns a registry holding every built-in rule-set.
func Default() *Registry {
	r := NewRegistry()
	r.Register(traitors.GameType, buildTraitors)
	return r
}

func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = b
}

// Types lists registered game types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for name := range r.builders {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) New(gameType string, participants []realitybench.ParticipantConfig, params json.RawMessage, provider realitybench.Provider, opts Options) (realitybench.Game, error) {
	r.mu.RLock()
	b, ok := r.builders[gameType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown game type %q (known: %s)", realitybench.ErrConfiguration, gameType, strings.Join(r.Types(), ", "))
	}
	return b(participants, params, provider, opts)
}

func buildTraitors(participants []realitybench.ParticipantConfig, params json.RawMessage, provider realitybench.Provider, opts Options) (realitybench.Game, error) {
	cfg, err := traitors.ParseConfig(participants, params)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var topts []traitors.Option
	if opts.Log != nil {
		topts = append(topts, traitors.WithLog(opts.Log))
	}
	if opts.Rand != nil {
		topts = append(topts, traitors.WithRand(opts.Rand))
	}
	if opts.Logger != nil {
		topts = append(topts, traitors.WithLogger(opts.Logger))
	}
	g, err := traitors.New(cfg, provider, topts...)
	if err != nil {
		return nil, err
	}
	return g, nil
}
