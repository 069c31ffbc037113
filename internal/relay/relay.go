// Package relay publishes appended log records to Redis so processes other
// than the one running a game can follow it live.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/realitybench/internal/eventlog"
)

const channelPrefix = "realitybench:games:"

// Channel is the pub/sub channel carrying the records of game id.
func Channel(id string) string { return channelPrefix + id }

type Publisher struct {
	client *redis.Client
}

func New(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Open parses a redis:// URL and verifies the server answers.
func Open(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

func (p *Publisher) Check(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func (p *Publisher) Publish(ctx context.Context, id string, rec eventlog.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %d: %w", rec.ID, err)
	}
	if err := p.client.Publish(ctx, Channel(id), data).Err(); err != nil {
		return fmt.Errorf("publishing record %d of game %s: %w", rec.ID, id, err)
	}
	return nil
}

// Sink publishes every record of game id.
func (p *Publisher) Sink(id string) eventlog.Sink {
	return eventlog.SinkFunc(func(ctx context.Context, rec eventlog.Record) error {
		return p.Publish(ctx, id, rec)
	})
}

// Subscribe streams the records of game id until ctx is done.
func Subscribe(ctx context.Context, client *redis.Client, id string) (<-chan eventlog.Record, error) {
	sub := client.Subscribe(ctx, Channel(id))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribing to game %s: %w", id, err)
	}

	out := make(chan eventlog.Record)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec eventlog.Record
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
