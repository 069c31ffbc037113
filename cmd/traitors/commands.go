package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/eventlog"
	"github.com/playperu/realitybench/internal/games"
	"github.com/playperu/realitybench/internal/provider"
	"github.com/playperu/realitybench/internal/realitybench"
	"github.com/playperu/realitybench/internal/runner"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "traitors",
		Short:         "Play social-deduction games between language models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(), newReplayCmd(), newContextCmd(), newWatchCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		gamePath string
		logPath  string
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play a game to the end",
		Long: `Play the game described by --config to the end and print its results.

With --log the event log is written after every step; if the file already
exists the game is rebuilt from it and play continues where it stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: cfg.LogLevel,
			}))

			file, err := config.LoadGame(gamePath)
			if err != nil {
				return err
			}
			log, err := openLog(logPath)
			if err != nil {
				return err
			}
			prov, err := provider.FromConfig(cfg, logger)
			if err != nil {
				return err
			}

			rn := runner.New(runner.Config{Provider: prov, Logger: logger, Seed: cfg.GameSeed})
			run, err := rn.Prepare(ctx, file, log)
			if err != nil {
				return err
			}
			if log != nil {
				logger.Info("resuming game", "log", logPath, "records", log.Len())
			}

			save := func(run *runner.Run) error {
				if logPath == "" {
					return nil
				}
				return run.Log.WriteFile(logPath)
			}
			res, err := rn.Play(ctx, run, save)
			// Keep whatever was played so a rerun resumes from it.
			if serr := save(run); serr != nil && err == nil {
				err = serr
			}
			if err != nil {
				return err
			}
			return printResults(cmd, res)
		},
	}
	cmd.Flags().StringVar(&gamePath, "config", "", "game file (JSON)")
	cmd.Flags().StringVar(&logPath, "log", "", "event log file to write and resume from")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for role assignment and tie-breaks (overrides SEED)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newReplayCmd() *cobra.Command {
	var gamePath, logPath string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a game from its event log and print its results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := config.LoadGame(gamePath)
			if err != nil {
				return err
			}
			log, err := eventlog.ReadFile(logPath)
			if err != nil {
				return fmt.Errorf("reading log: %w", err)
			}
			g, err := games.Default().New(file.GameType, file.Participants, file.Params, nil, games.Options{Log: log})
			if err != nil {
				return err
			}
			return printResults(cmd, g.Results())
		},
	}
	cmd.Flags().StringVar(&gamePath, "config", "", "game file (JSON)")
	cmd.Flags().StringVar(&logPath, "log", "", "event log file")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

func newContextCmd() *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "context NAME",
		Short: "Print what one participant has seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := eventlog.ReadFile(logPath)
			if err != nil {
				return fmt.Errorf("reading log: %w", err)
			}
			text, err := eventlog.Render(log.Visible(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "event log file")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

// openLog reads the log at path, or returns nil when there is nothing to
// resume from.
func openLog(path string) (*eventlog.Store, error) {
	if path == "" {
		return nil, nil
	}
	log, err := eventlog.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	return log, nil
}

func printResults(cmd *cobra.Command, res realitybench.Results) error {
	data, err := runner.MarshalResults(res)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if res.Status == realitybench.StatusFinished {
		var winners []string
		for _, name := range slices.Sorted(maps.Keys(res.PrizeDistribution)) {
			if res.PrizeDistribution[name] > 0 {
				winners = append(winners, name)
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Winner(s): %s (%s)\n", res.WinnerType, strings.Join(winners, ", "))
	}
	return nil
}

