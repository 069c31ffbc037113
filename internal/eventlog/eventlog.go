// Package eventlog is the append-only record store every game owns. It is
// the sole authoritative history: game state is always derived from it.
//
// Visibility is tag driven and explicit. A record is shown to a participant
// only when it carries "<name>_visible" = true; a record without recipient
// tags is visible to nobody.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type Kind string

const (
	KindEvent  Kind = "event"
	KindPrompt Kind = "prompt"
	KindQuery  Kind = "query"
)

func (k Kind) valid() bool {
	return k == KindEvent || k == KindPrompt || k == KindQuery
}

// Tags labels a record. An absent key reads as false.
type Tags map[string]bool

// Match reports whether every key in want holds the same value in t.
func (t Tags) Match(want Tags) bool {
	for k, v := range want {
		if t[k] != v {
			return false
		}
	}
	return true
}

// VisibleTag is the tag granting name visibility of a record.
func VisibleTag(name string) string { return name + "_visible" }

// VisibleTo tags a record for each of names.
func VisibleTo(names ...string) Tags {
	t := make(Tags, len(names))
	for _, n := range names {
		t[VisibleTag(n)] = true
	}
	return t
}

// With returns a copy of t with the given keys set to true.
func (t Tags) With(keys ...string) Tags {
	out := make(Tags, len(t)+len(keys))
	for k, v := range t {
		out[k] = v
	}
	for _, k := range keys {
		out[k] = true
	}
	return out
}

// Record is immutable once appended.
type Record struct {
	ID      int64           `json:"id"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Tags    Tags            `json:"tags,omitempty"`
}

// PromptPayload is the body of a prompt record.
type PromptPayload struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Prompt       string `json:"prompt"`
	Completion   string `json:"completion,omitempty"`
}

// QueryPayload is the body of a query audit record.
type QueryPayload struct {
	Filter  Tags    `json:"filter"`
	Matched []int64 `json:"matched"`
}

// Sink observes every record appended live. Bulk imports are not replayed
// into sinks.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Write(ctx context.Context, rec Record) error { return f(ctx, rec) }

type Store struct {
	mu      sync.RWMutex
	records []Record
	sinks   []Sink
}

func New(sinks ...Sink) *Store {
	return &Store{sinks: sinks}
}

// AddSink registers a sink for records appended from now on.
func (s *Store) AddSink(sink Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// Append assigns the next sequence id to a new record and hands it to the
// sinks. A sink failure is returned after the record is stored in memory.
func (s *Store) Append(ctx context.Context, kind Kind, payload any, tags Tags) (Record, error) {
	if !kind.valid() {
		return Record{}, fmt.Errorf("unknown record kind %q", kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("encoding %s payload: %w", kind, err)
	}

	var copied Tags
	if len(tags) > 0 {
		copied = tags.With()
	}

	s.mu.Lock()
	rec := Record{
		ID:      s.nextID(),
		Kind:    kind,
		Payload: data,
		Tags:    copied,
	}
	s.records = append(s.records, rec)
	sinks := s.sinks
	s.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Write(ctx, rec); err != nil {
			return rec, fmt.Errorf("writing record %d to sink: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// Event appends an event record.
func (s *Store) Event(ctx context.Context, payload any, tags Tags) (Record, error) {
	return s.Append(ctx, KindEvent, payload, tags)
}

func (s *Store) nextID() int64 {
	if len(s.records) == 0 {
		return 1
	}
	return s.records[len(s.records)-1].ID + 1
}

// Records returns a copy of the full log in order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Where returns, in original order, every record satisfying pred.
func (s *Store) Where(pred func(Record) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// Filter returns every record whose tags match all of want.
func (s *Store) Filter(want Tags) []Record {
	return s.Where(func(r Record) bool { return r.Tags.Match(want) })
}

// Query filters like Filter and appends a query record listing the matched
// ids. Query records carry only the "query" tag so they never reach any
// participant's context.
func (s *Store) Query(ctx context.Context, want Tags) ([]Record, error) {
	matched := s.Filter(want)
	ids := make([]int64, len(matched))
	for i, r := range matched {
		ids[i] = r.ID
	}
	if _, err := s.Append(ctx, KindQuery, QueryPayload{Filter: want, Matched: ids}, Tags{"query": true}); err != nil {
		return nil, err
	}
	return matched, nil
}

// Last returns the most recent record of kind, if any.
func (s *Store) Last(kind Kind) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Kind == kind {
			return s.records[i], true
		}
	}
	return Record{}, false
}
