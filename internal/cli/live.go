package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	nav "rover-search/rover_nav"
)

// LiveCmd returns the live command.
func LiveCmd(opts *Options) *cobra.Command {
	var (
		liveAddr   string
		outputAddr string
		startState string
	)

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run the UDP-to-UDP control loop",
		Long: `Listen for pose and marker reports over UDP, run the navigator at the
configured rate and send "linear,angular,STATE" drive commands to the
output address. Stops when the course completes or on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Load()
			if err != nil {
				return err
			}
			if liveAddr != "" {
				cfg.Live.UDPAddr = liveAddr
			}
			if outputAddr != "" {
				cfg.Output.UDPAddr = outputAddr
			}
			if startState != "" {
				if _, err := nav.ParseState(startState); err != nil {
					return err
				}
				cfg.StartState = startState
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			err = nav.RunLive(ctx, cfg, rt.hooks, rt.log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&liveAddr, "live-addr", "", "Override live UDP listen addr (host:port)")
	cmd.Flags().StringVar(&outputAddr, "output-addr", "", "Override output UDP addr (host:port)")
	cmd.Flags().StringVar(&startState, "start-state", "", "Force the initial behaviour (TRAVERSE, SEARCH, APPROACH)")
	return cmd
}
