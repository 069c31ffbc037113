package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/relay"
)

type entry struct {
	typ, text string
	tags      eventlog.Tags
}

var script = []entry{
	{typ: "start", text: "Game started", tags: eventlog.VisibleTo("Ann", "Bob")},
	{typ: "private_message", text: "Bob whispers", tags: eventlog.VisibleTo("Bob")},
	{typ: "game_end", text: "Faithfuls win", tags: eventlog.VisibleTo("Ann", "Bob")},
	{typ: "start", text: "never printed", tags: eventlog.VisibleTo("Ann")},
}

// play appends script to log, with a prompt record after the first event.
func play(t *testing.T, log *eventlog.Store) {
	t.Helper()
	ctx := context.Background()
	for i, e := range script {
		if _, err := log.Event(ctx, map[string]string{"type": e.typ, "text": e.text}, e.tags); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			if _, err := log.Append(ctx, eventlog.KindPrompt, eventlog.PromptPayload{Model: "m", Prompt: "p"}, eventlog.Tags{"prompt": true}); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestWatchStopsAtGameEnd(t *testing.T) {
	tests := []struct {
		name   string
		filter eventlog.Tags
		want   string
	}{
		{name: "everything", want: "1. Game started\n3. Bob whispers\n4. Faithfuls win\n"},
		{name: "one participant", filter: eventlog.VisibleTo("Ann"), want: "1. Game started\n4. Faithfuls win\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make(chan eventlog.Record, 8)
			log := eventlog.New(eventlog.SinkFunc(func(_ context.Context, rec eventlog.Record) error {
				in <- rec
				return nil
			}))
			play(t, log)

			var out strings.Builder
			if err := watch(context.Background(), in, tt.filter, &out); err != nil {
				t.Fatalf("watch: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestWatchThroughRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := relay.Open(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer client.Close()

	records, err := relay.Subscribe(ctx, client, "g1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	play(t, eventlog.New(relay.New(client).Sink("g1")))

	var out strings.Builder
	if err := watch(ctx, records, nil, &out); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if want := "1. Game started\n3. Bob whispers\n4. Faithfuls win\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestWatchNeedsRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, _, err := execute(t, "watch", "g1"); err == nil {
		t.Fatal("expected error without REDIS_URL")
	}
}
