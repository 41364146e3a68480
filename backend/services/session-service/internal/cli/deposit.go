package cli

import (
	"github.com/spf13/cobra"
)

func newDepositCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Show the cumulative deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().Deposit(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <amount>",
		Short: "Add ETH to the deposit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().AddDeposit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget recorded deposits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().ClearDeposit(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	})

	return cmd
}
