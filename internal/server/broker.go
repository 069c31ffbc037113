package server

import (
	"context"
	"sync"

	"github.com/playperu/realitybench/internal/eventlog"
)

// Broker is an in-process pub/sub for appended records, keyed by game ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan eventlog.Record]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan eventlog.Record]struct{}),
	}
}

// Subscribe returns a channel that receives the records of the given game as
// they are appended. The channel is closed when the game's run ends.
func (b *Broker) Subscribe(gameID string) chan eventlog.Record {
	ch := make(chan eventlog.Record, 64)
	b.mu.Lock()
	if b.subs[gameID] == nil {
		b.subs[gameID] = make(map[chan eventlog.Record]struct{})
	}
	b.subs[gameID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the game's subscribers.
func (b *Broker) Unsubscribe(gameID string, ch chan eventlog.Record) {
	b.mu.Lock()
	if _, ok := b.subs[gameID][ch]; ok {
		delete(b.subs[gameID], ch)
		close(ch)
	}
	if len(b.subs[gameID]) == 0 {
		delete(b.subs, gameID)
	}
	b.mu.Unlock()
}

// Publish sends a record to all subscribers of the given game.
func (b *Broker) Publish(gameID string, rec eventlog.Record) {
	b.mu.RLock()
	for ch := range b.subs[gameID] {
		select {
		case ch <- rec:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Close ends every subscription of the given game.
func (b *Broker) Close(gameID string) {
	b.mu.Lock()
	for ch := range b.subs[gameID] {
		close(ch)
	}
	delete(b.subs, gameID)
	b.mu.Unlock()
}

// Sink publishes every record of the given game.
func (b *Broker) Sink(gameID string) eventlog.Sink {
	return eventlog.SinkFunc(func(_ context.Context, rec eventlog.Record) error {
		b.Publish(gameID, rec)
		return nil
	})
}
