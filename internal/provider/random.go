package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/playperu/realitybench/internal/realitybench"
)

var phrases = []string{
	"I have a feeling about this one.",
	"Something about the last vote does not add up.",
	"I trust the people who spoke first.",
	"We need to keep our heads.",
	"Watch who stays quiet.",
}

// Random answers every request with a schema-valid choice drawn from a
// seeded source. It never fails and never touches the network.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *Random) Complete(ctx context.Context, req realitybench.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Iterate in key order so a seed always yields the same answers.
	keys := make([]string, 0, len(req.Schema.Properties))
	for k := range req.Schema.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	reply := make(map[string]string, len(keys))
	for _, k := range keys {
		prop := req.Schema.Properties[k]
		if len(prop.Enum) > 0 {
			reply[k] = prop.Enum[r.rng.IntN(len(prop.Enum))]
			continue
		}
		reply[k] = phrases[r.rng.IntN(len(phrases))]
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return "", fmt.Errorf("encoding random reply: %w", err)
	}
	return string(data), nil
}
