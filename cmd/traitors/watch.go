package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/relay"
	"github.com/playperu/realitybench/internal/traitors"
)

func newWatchCmd() *cobra.Command {
	var visibleTo string
	cmd := &cobra.Command{
		Use:   "watch GAME_ID",
		Short: "Follow a game played by a server, through the Redis relay",
		Long: `Print the events of a game as the server that plays it appends them.
Requires REDIS_URL to point at the server's relay. Stops at the end of the game.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.RedisURL == "" {
				return errors.New("watch needs REDIS_URL")
			}
			client, err := relay.Open(ctx, cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			defer client.Close()

			records, err := relay.Subscribe(ctx, client, args[0])
			if err != nil {
				return err
			}
			var filter eventlog.Tags
			if visibleTo != "" {
				filter = eventlog.VisibleTo(visibleTo)
			}
			return watch(ctx, records, filter, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&visibleTo, "visible-to", "", "only show events this participant sees")
	return cmd
}

// watch prints each event matching filter until the game ends or records
// closes.
func watch(ctx context.Context, records <-chan eventlog.Record, filter eventlog.Tags, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			if rec.Kind != eventlog.KindEvent {
				continue
			}
			d, err := eventlog.Describe(rec)
			if err != nil {
				return err
			}
			if rec.Tags.Match(filter) {
				fmt.Fprintf(w, "%d. %s\n", rec.ID, d.Text)
			}
			if d.Type == traitors.EventGameEnd {
				return nil
			}
		}
	}
}
