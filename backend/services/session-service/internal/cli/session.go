package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStartCmd(opts *options) *cobra.Command {
	var deposit, price string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session",
		Long:  "Open a session with the given deposit and unit price in ETH. Omitted values use the server defaults.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().StartSession(cmd.Context(), deposit, price)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&deposit, "deposit", "", "Deposit in ETH (e.g. 0.1)")
	cmd.Flags().StringVar(&price, "price", "", "Price per unit in ETH (e.g. 0.0000001)")

	return cmd
}

func newStopCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Close the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().StopSession(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the session and return to the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().ResetSession(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}

func newReportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report <units>",
		Short: "Report consumed units as a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := parseUnits(args[0])
			if err != nil {
				return err
			}
			res, err := opts.client().ReportUsage(cmd.Context(), units)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status with spend and refund",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
