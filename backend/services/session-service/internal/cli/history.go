package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		asJSON bool
		wipe   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			if wipe {
				if err := c.ClearTransactions(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
				return nil
			}

			txs, err := c.Transactions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, txs)
			}
			if len(txs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no transactions")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HASH\tSTATUS\tACTION\tTIME")
			for _, tx := range txs {
				ts := time.UnixMilli(tx.Timestamp).Format(time.TimeOnly)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tx.ShortHash, tx.Status, tx.Action, ts)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of newest entries to show (0 shows all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	cmd.Flags().BoolVar(&wipe, "clear", false, "Delete the stored history")

	cmd.AddCommand(&cobra.Command{
		Use:   "track <hash> <action>",
		Short: "Track an externally submitted transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := opts.client().TrackTransaction(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, tx)
		},
	})

	return cmd
}
