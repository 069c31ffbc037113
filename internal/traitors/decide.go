package traitors

import (
	"context"
	"fmt"
	"slices"

	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/realitybench"
)

// ask sends one decision request on behalf of p and returns the validated
// fields. The exchange is logged as a prompt record, visible to no agent.
// Any failure is fatal to the run: retries belong to the provider.
func (g *Game) ask(ctx context.Context, p *realitybench.Participant, prompt string, schema realitybench.Schema) (map[string]string, error) {
	req := realitybench.Request{
		Prompt:       prompt,
		SystemPrompt: systemPrompt(p.Name, g.cfg),
		Model:        p.Model,
		Schema:       schema,
	}

	text, callErr := g.provider.Complete(ctx, req)

	if _, err := g.log.Append(ctx, eventlog.KindPrompt, eventlog.PromptPayload{
		Model:        p.Model,
		SystemPrompt: req.SystemPrompt,
		Prompt:       prompt,
		Completion:   text,
	}, eventlog.Tags{"prompt": true}); err != nil {
		return nil, fmt.Errorf("recording prompt: %w", err)
	}

	if callErr != nil {
		return nil, fmt.Errorf("%w: asking %s (%s): %w", realitybench.ErrProvider, p.Name, p.Model, callErr)
	}

	fields, err := schema.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("response from %s: %w", p.Name, err)
	}
	g.logger.Debug("decision", "round", g.round, "participant", p.Name, "fields", fields)
	return fields, nil
}

func (g *Game) contextFor(ctx context.Context, p *realitybench.Participant) (string, error) {
	return g.log.ContextFor(ctx, p.Name)
}

// nominate asks speaker to name one of others for elimination and to give a
// public speech.
func (g *Game) nominate(ctx context.Context, speaker *realitybench.Participant, others []*realitybench.Participant) (*realitybench.Participant, string, error) {
	history, err := g.contextFor(ctx, speaker)
	if err != nil {
		return nil, "", err
	}

	candidates := realitybench.Names(others)
	shown := realitybench.Names(g.shuffled(others))
	slices.Sort(candidates)

	res, err := g.ask(ctx, speaker, nominationPrompt(history, speaker.Name, shown), nominationSchema(candidates))
	if err != nil {
		return nil, "", err
	}

	target := g.byName[res["eliminate_player"]]
	if target == nil || !slices.Contains(others, target) {
		return nil, "", fmt.Errorf("%w: %s nominated ineligible player %q", realitybench.ErrProvider, speaker.Name, res["eliminate_player"])
	}
	return target, res["speech"], nil
}
