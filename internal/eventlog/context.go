package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Described is the minimal shape every event payload shares.
type Described struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Describe returns the human-readable text of an event record.
func Describe(rec Record) (Described, error) {
	var d Described
	if err := json.Unmarshal(rec.Payload, &d); err != nil {
		return Described{}, fmt.Errorf("decoding record %d: %w", rec.ID, err)
	}
	return d, nil
}

// Visible returns the events visible to name, in log order.
func (s *Store) Visible(name string) []Record {
	want := VisibleTo(name)
	return s.Where(func(r Record) bool {
		return r.Kind == KindEvent && r.Tags.Match(want)
	})
}

// ContextFor renders the events visible to name as a numbered block, the
// "context so far" handed to a decision request. The lookup is recorded as
// a query record for auditing.
func (s *Store) ContextFor(ctx context.Context, name string) (string, error) {
	matched, err := s.Query(ctx, VisibleTo(name))
	if err != nil {
		return "", fmt.Errorf("querying context for %s: %w", name, err)
	}
	return Render(matched)
}

// Render numbers the event records 1..k and joins their text.
func Render(records []Record) (string, error) {
	var b strings.Builder
	n := 0
	for _, r := range records {
		if r.Kind != KindEvent {
			continue
		}
		d, err := Describe(r)
		if err != nil {
			return "", err
		}
		n++
		if n > 1 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", n, d.Text)
	}
	return b.String(), nil
}
