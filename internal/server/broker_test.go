package server

import (
	"context"
	"testing"

	"github.com/playperu/realitybench/internal/eventlog"
)

func TestBrokerRoutesByGame(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe("a")
	other := b.Subscribe("b")

	log := eventlog.New(b.Sink("a"))
	if _, err := log.Event(context.Background(), map[string]string{"type": "x"}, nil); err != nil {
		t.Fatal(err)
	}

	select {
	case rec := <-a:
		if rec.ID != 1 {
			t.Errorf("record id = %d, want 1", rec.ID)
		}
	default:
		t.Fatal("subscriber of game a got nothing")
	}
	select {
	case rec := <-other:
		t.Errorf("subscriber of game b got record %d", rec.ID)
	default:
	}

	b.Unsubscribe("b", other)
	if _, ok := <-other; ok {
		t.Error("unsubscribed channel is still open")
	}
}

func TestBrokerCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("a")
	b.Close("a")
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Close")
	}
	// Unsubscribing after Close must not close the channel twice.
	b.Unsubscribe("a", ch)
	b.Publish("a", eventlog.Record{ID: 1})
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("a")
	for i := range 100 {
		b.Publish("a", eventlog.Record{ID: int64(i + 1)})
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffered %d records, want %d", len(ch), cap(ch))
	}
}
