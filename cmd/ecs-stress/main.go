//go:generate go run ./gen -components 16 -systems 8 -out generated.go

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "ecs-stress",
		Short:         "Stress test the scheduler with generated components and systems",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "engine config file (yaml, toml or json)")

	opts := runOptions{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation and print a report",
		Example: `  ecs-stress run --duration 30s --entities 50000
  ecs-stress run --config engine.toml --save world.json --save-entities 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = configPath
			report, err := runStress(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\n--- Stress Test Report ---")
			if err := report.Generate(out); err != nil {
				return fmt.Errorf("generate report: %w", err)
			}
			fmt.Fprintln(out, "--- End of Report ---")
			return nil
		},
	}
	runCmd.Flags().DurationVar(&opts.duration, "duration", 10*time.Second, "total duration of the run")
	runCmd.Flags().IntVar(&opts.entities, "entities", 10000, "initial number of entities")
	runCmd.Flags().Uint64Var(&opts.seed, "seed", 1, "random seed for the initial population")
	runCmd.Flags().BoolVar(&opts.paced, "paced", false, "pace frames with loop.limiter and loop.tick_rate")
	runCmd.Flags().BoolVar(&opts.gcPauseMetrics, "gc-pause-metrics", false, "include GC pause metrics in the report")
	runCmd.Flags().StringVar(&opts.savePath, "save", "", "save marked entities to this file after the run")
	runCmd.Flags().IntVar(&opts.saveEntities, "save-entities", 100, "number of entities to mark for saving")

	loadCmd := &cobra.Command{
		Use:     "load <file>",
		Short:   "Load a save file and print its archetype breakdown",
		Example: "  ecs-stress load world.json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := loadSave(configPath, args[0])
			if err != nil {
				return err
			}
			return WriteStorageReport(cmd.OutOrStdout(), stats)
		},
	}

	root.AddCommand(runCmd, loadCmd)
	return root
}
