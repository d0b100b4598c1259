package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raykavin/adaptrisk"
	"github.com/raykavin/adaptrisk/pkg/backtesting"
	"github.com/raykavin/adaptrisk/pkg/config"
	"github.com/raykavin/adaptrisk/pkg/storage"
)

// Command line flags
var (
	configPath  string
	storagePath string
	inputFile   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "adaptrisk",
		Short:   "Adaptive risk engine utilities",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Strategy configuration file")
	rootCmd.PersistentFlags().StringVarP(&storagePath, "storage", "s", "adaptrisk.db", "Performance database path")

	rootCmd.AddCommand(buildInitConfigCmd(), buildReplayCmd(), buildSummaryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the default strategy configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configPath); err != nil {
				return err
			}
			fmt.Printf("configuration available at %s\n", configPath)
			return nil
		},
	}
}

func buildReplayCmd() *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded trade outcomes through the engine",
		RunE:  runReplay,
	}

	replayCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Outcomes CSV file (timestamp,direction,profit_ratio)")
	replayCmd.MarkFlagRequired("file")

	return replayCmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	engine, err := buildEngine(cmd, true)
	if err != nil {
		return err
	}

	replayer := backtesting.NewReplayer(engine.Tracker(), adaptrisk.DefaultLog)
	if err := replayer.Run(cmd.Context(), inputFile); err != nil {
		return err
	}

	fmt.Println(engine.Summary())
	return nil
}

func buildSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the diagnostics summary from persisted state",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(cmd, false)
			if err != nil {
				return err
			}

			if err := engine.Rehydrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Println(engine.Summary())
			return nil
		},
	}
}

func buildEngine(cmd *cobra.Command, backtest bool) (*adaptrisk.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFromFile(storagePath)
	if err != nil {
		return nil, err
	}

	options := []adaptrisk.Option{
		adaptrisk.WithPerformanceStore(store),
		adaptrisk.WithTradeRepository(store),
	}
	if backtest {
		options = append(options, adaptrisk.WithBacktest())
	}

	return adaptrisk.NewEngine(cmd.Context(), cfg, options...)
}
