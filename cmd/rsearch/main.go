package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rover-search/internal/cli"
)

func main() {
	opts := &cli.Options{}

	rootCmd := &cobra.Command{
		Use:   "rsearch",
		Short: "Rover spiral search for fiducial markers",
		Long: `rsearch drives a rover through a waypoint course. At waypoints tagged
with a fiducial marker it runs an outward square spiral until the marker is
seen, then hands off to the marker approach.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(cli.SpiralCmd(opts))
	rootCmd.AddCommand(cli.SimulateCmd(opts))
	rootCmd.AddCommand(cli.LiveCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
