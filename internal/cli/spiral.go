package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rover-search/internal/geo"
	nav "rover-search/rover_nav"
)

// SpiralCmd returns the spiral command.
func SpiralCmd(opts *Options) *cobra.Command {
	var (
		turns   int
		step    float64
		x, y    float64
		marker  int
		wktOnly bool
	)

	cmd := &cobra.Command{
		Use:   "spiral",
		Short: "Print the search spiral for a centre point",
		Long: `Generate the square search spiral the rover would drive around a centre
point and print its points, length and WKT. Turns and step default to the
search section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("turns") {
				turns = cfg.Search.Turns
			}
			if !cmd.Flags().Changed("step") {
				step = cfg.Search.Step
			}

			traj, err := nav.GenerateSpiral(nav.Point2D{X: x, Y: y}, turns, step, nav.MarkerID(marker))
			if err != nil {
				return err
			}
			sum, err := geo.Summarize(traj)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if wktOnly {
				fmt.Fprintln(out, sum.WKT)
				return nil
			}

			header := color.New(color.Bold)
			fmt.Fprintf(out, "%s marker=%d turns=%d step=%g centre=(%g, %g)\n",
				header.Sprint("Spiral"), marker, turns, step, x, y)
			for i, p := range traj.Points() {
				idx := color.New(color.FgCyan).Sprintf("%3d", i)
				fmt.Fprintf(out, "  %s  %10.3f %10.3f\n", idx, p.X, p.Y)
			}
			simple := color.New(color.FgGreen).Sprint("yes")
			if !sum.Simple {
				simple = color.New(color.FgRed).Sprint("no")
			}
			fmt.Fprintf(out, "points=%d length=%.3f simple=%s\n", traj.Len(), sum.Length, simple)
			fmt.Fprintln(out, sum.WKT)
			return nil
		},
	}

	cmd.Flags().IntVar(&turns, "turns", 0, "Number of spiral turns (default from config)")
	cmd.Flags().Float64Var(&step, "step", 0, "Spacing between rings in metres (default from config)")
	cmd.Flags().Float64Var(&x, "x", 0, "Centre x")
	cmd.Flags().Float64Var(&y, "y", 0, "Centre y")
	cmd.Flags().IntVar(&marker, "marker", int(nav.NoMarker), "Marker id the spiral searches for")
	cmd.Flags().BoolVar(&wktOnly, "wkt", false, "Print only the WKT line string")
	return cmd
}
