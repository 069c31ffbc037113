package traitors

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/realitybench"
)

// script is a Decision Provider whose answers are chosen by the test. Every
// participant's model is its own name, so req.Model identifies the asker.
type script struct {
	nominate func(voter string, candidates []string) string
	murder   func(traitor string, faithfuls []string) string
	endGame  func(player string) string
	raw      func(req realitybench.Request) (string, error)
	calls    int
}

func (s *script) Complete(_ context.Context, req realitybench.Request) (string, error) {
	s.calls++
	if s.raw != nil {
		return s.raw(req)
	}

	props := req.Schema.Properties
	reply := map[string]string{}
	switch {
	case has(props, "message_to_send"):
		reply["message_to_send"] = "psst, I trust you"
	case has(props, "eliminate_player"):
		candidates := props["eliminate_player"].Enum
		target := candidates[0]
		if s.nominate != nil {
			target = s.nominate(req.Model, candidates)
		}
		reply["eliminate_player"] = target
		reply["speech"] = "it has to be " + target
	case has(props, "target_name"):
		reply["target_name"] = s.murderPick(req.Model, props["target_name"].Enum)
		reply["reasoning"] = "too sharp"
	case has(props, "final_vote"):
		reply["final_vote"] = s.murderPick(req.Model, props["final_vote"].Enum)
		reply["explanation"] = "agreed"
	case has(props, "vote"):
		v := voteContinue
		if s.endGame != nil {
			v = s.endGame(req.Model)
		}
		reply["vote"] = v
		reply["reasoning"] = "gut feeling"
	default:
		return "", fmt.Errorf("unexpected schema %v", props)
	}

	data, err := json.Marshal(reply)
	return string(data), err
}

func (s *script) murderPick(traitor string, faithfuls []string) string {
	if s.murder != nil {
		return s.murder(traitor, faithfuls)
	}
	return faithfuls[0]
}

func has(props map[string]realitybench.Property, key string) bool {
	_, ok := props[key]
	return ok
}

// randomAnswers picks uniformly among every enum and always answers.
type randomAnswers struct{ rng *rand.Rand }

func (r randomAnswers) Complete(_ context.Context, req realitybench.Request) (string, error) {
	reply := map[string]string{}
	for name, prop := range req.Schema.Properties {
		if len(prop.Enum) > 0 {
			reply[name] = prop.Enum[r.rng.IntN(len(prop.Enum))]
			continue
		}
		reply[name] = "something for " + name
	}
	data, err := json.Marshal(reply)
	return string(data), err
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("P%d", i+1)
	}
	return out
}

func testConfig(n, traitors int) Config {
	cfg := DefaultConfig()
	cfg.TraitorCount = traitors
	for _, name := range names(n) {
		cfg.Participants = append(cfg.Participants, realitybench.ParticipantConfig{Name: name, Model: name})
	}
	return cfg
}

// seededLog writes a start event and eliminations as a prior run would
// have, so a new Game resumes from that position. Eliminations are recorded
// as murders, closing round 1.
func seededLog(t *testing.T, traitors, faithfuls []string, eliminated ...string) *eventlog.Store {
	t.Helper()
	ctx := context.Background()
	all := append(slices.Clone(traitors), faithfuls...)
	log := eventlog.New()
	if _, err := log.Event(ctx, Event{
		Type:      EventStart,
		Text:      "Game started",
		Traitors:  traitors,
		Faithfuls: faithfuls,
	}, eventlog.VisibleTo(all...)); err != nil {
		t.Fatalf("seed start: %v", err)
	}
	for _, name := range eliminated {
		if _, err := log.Event(ctx, Event{
			Type:   EventMurdered,
			Text:   name + " was MURDERED by the traitors.",
			Round:  1,
			Target: name,
		}, eventlog.VisibleTo(all...)); err != nil {
			t.Fatalf("seed elimination: %v", err)
		}
	}
	return log
}

// appendEvent adds ev to log visible to everyone in names.
func appendEvent(t *testing.T, log *eventlog.Store, ev Event, names ...string) {
	t.Helper()
	if _, err := log.Event(context.Background(), ev, eventlog.VisibleTo(names...)); err != nil {
		t.Fatalf("append %s: %v", ev.Type, err)
	}
}

func newGame(t *testing.T, cfg Config, p realitybench.Provider, opts ...Option) *Game {
	t.Helper()
	g, err := New(cfg, p, append([]Option{WithSeed(7)}, opts...)...)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return g
}

func events(t *testing.T, log *eventlog.Store, typ string) []Event {
	t.Helper()
	var out []Event
	for _, rec := range log.Records() {
		if rec.Kind != eventlog.KindEvent {
			continue
		}
		var ev Event
		if err := json.Unmarshal(rec.Payload, &ev); err != nil {
			t.Fatalf("decode record %d: %v", rec.ID, err)
		}
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// checkRoster asserts the partition invariant over all participants.
func checkRoster(t *testing.T, g *Game) {
	t.Helper()
	st := g.State()
	seen := make(map[string]int)
	for _, set := range [][]string{st.Traitors, st.Faithfuls, st.Eliminated} {
		for _, n := range set {
			seen[n]++
		}
	}
	for _, p := range g.cfg.Participants {
		if seen[p.Name] != 1 {
			t.Fatalf("%s appears %d times across traitors/faithfuls/eliminated: %+v", p.Name, seen[p.Name], st)
		}
	}
	if len(seen) != len(g.cfg.Participants) {
		t.Fatalf("roster holds %d names, want %d", len(seen), len(g.cfg.Participants))
	}
}
