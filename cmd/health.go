package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"djrag/health"
)

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the backend is reachable",
		Long:  "Probe the backend once. Exits 0 when it is reachable and 1 when it is not.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			poller := health.NewPoller(env.client, health.Options{Timeout: env.cfg.HealthTimeout})
			status := poller.Check(cmd.Context())

			out := cmd.OutOrStdout()
			if status != health.Healthy {
				fmt.Fprintf(out, "%s: unreachable", env.client.BaseURL())
				if err := poller.LastError(); err != nil {
					fmt.Fprintf(out, " (%v)", err)
				}
				fmt.Fprintln(out)
				return errUnhealthy
			}

			fmt.Fprintf(out, "%s: ok\n", env.client.BaseURL())
			return nil
		},
	}
}
