package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCommand prints every stored transaction in storage order.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			if rootOpts.Format == "json" {
				transactions, err := db.ListTransactions(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(transactions)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAMOUNT\tTIME\tDESCRIPTION")
			for tx, err := range db.FetchAllTransactions(cmd.Context()) {
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\n", tx.ID, tx.Amount, tx.Time, tx.Description)
			}
			return w.Flush()
		},
	}
}
