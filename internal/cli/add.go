package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/NgigiN/groupbanker/internal/mpesa"
	"github.com/NgigiN/groupbanker/internal/storage"
	"github.com/spf13/cobra"
)

type addOptions struct {
	mpesa string
	now   func() time.Time
}

// NewAddCommand records one transaction.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &addOptions{now: time.Now}

	cmd := &cobra.Command{
		Use:   "add <amount> <description> [time]",
		Short: "Record a transaction",
		Long: `Record a transaction. The time defaults to now (` + storage.TimeLayout + `)
and is stored as given otherwise. With --mpesa the transaction is taken from
an M-PESA confirmation message instead of arguments.

Negative amounts are taken as arguments, not flags:

  groupbanker add -3.2 refund 2024-01-02T09:30`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.mpesa != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(2, 3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, description, when, err := opts.record(args)
			if err != nil {
				return err
			}

			db, err := rootOpts.openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := db.CreateTransaction(cmd.Context(), amount, description, when)
			if err != nil {
				return fmt.Errorf("failed to record transaction: %w", err)
			}

			tx := storage.Transaction{ID: id, Amount: amount, Description: description, Time: when}
			if rootOpts.Format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(tx)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded transaction %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.mpesa, "mpesa", "", "record an M-PESA confirmation message")

	return cmd
}

func (o *addOptions) record(args []string) (float64, string, string, error) {
	if o.mpesa != "" {
		parsed, err := mpesa.ParseMPesaMessage(o.mpesa)
		if err != nil {
			return 0, "", "", err
		}
		amount, description, when := parsed.Record()
		return amount, description, when, nil
	}

	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("invalid amount %q: %w", args[0], err)
	}
	when := o.now().Format(storage.TimeLayout)
	if len(args) == 3 {
		when = args[2]
	}
	return amount, args[1], when, nil
}
