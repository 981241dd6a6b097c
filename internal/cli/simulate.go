package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	nav "rover-search/rover_nav"
)

// SimulateCmd returns the simulate command.
func SimulateCmd(opts *Options) *cobra.Command {
	var maxCycles int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the configured course against the built-in simulator",
		Long: `Drive the configured course in closed loop against a kinematic
differential-drive rover and the markers listed in the sim section, then
print how each waypoint was left.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-cycles") {
				cfg.Sim.MaxCycles = maxCycles
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rt, err := newRuntime(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			res, runErr := nav.RunSimulation(ctx, cfg, rt.hooks, rt.log)
			if runErr != nil && !errors.Is(runErr, nav.ErrCycleBudget) {
				return runErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s cycles=%d sim_time=%.1fs final=(%.2f, %.2f)\n",
				color.New(color.Bold).Sprint("Simulation"),
				res.Cycles, res.Elapsed.Seconds(),
				res.FinalPose.Position.X, res.FinalPose.Position.Y)
			for _, r := range res.Results {
				marker := "-"
				if r.Waypoint.HasMarker() {
					marker = fmt.Sprintf("%d", r.Waypoint.MarkerID)
				}
				fmt.Fprintf(out, "  wp %-3d marker %-4s %s (cycle %d)\n",
					r.Index, marker, statusLabel(r.Status), r.Cycle)
			}

			if rt.recorder != nil {
				sessions, err := rt.recorder.Sessions(context.Background())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "journal: %d search sessions\n", len(sessions))
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "Override sim.max_cycles")
	return cmd
}

func statusLabel(s nav.WaypointStatus) string {
	switch s {
	case nav.WaypointMarkerFound:
		return color.New(color.FgGreen).Sprint(s.String())
	case nav.WaypointMissed:
		return color.New(color.FgYellow).Sprint(s.String())
	default:
		return color.New(color.FgBlue).Sprint(s.String())
	}
}
