package cli

import (
	"github.com/spf13/cobra"
)

func newUsageCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Simulate usage on the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "manual <units>",
			Short: "Add a fixed number of units",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				units, err := parseUnits(args[0])
				if err != nil {
					return err
				}
				st, err := opts.client().AddManualUsage(cmd.Context(), units)
				if err != nil {
					return err
				}
				return printJSON(cmd, st)
			},
		},
		&cobra.Command{
			Use:   "random",
			Short: "Add a random burst of units",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := opts.client().AddRandomUsage(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			},
		},
		&cobra.Command{
			Use:   "auto",
			Short: "Start periodic auto usage",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := opts.client().StartAutoUsage(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, st)
			},
		},
		&cobra.Command{
			Use:   "stop-auto",
			Short: "Stop periodic auto usage",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := opts.client().StopAutoUsage(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, st)
			},
		},
	)

	return cmd
}
