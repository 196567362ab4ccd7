package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger table in PostgreSQL",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = a.command(func(cmd *cobra.Command, args []string, log zerolog.Logger) error {
		_, closeStore, err := a.openLedger(cmd.Context(), log)
		if err != nil {
			return err
		}
		closeStore()

		fmt.Fprintln(cmd.OutOrStdout(), "Ledger is up to date")
		return nil
	})

	return cmd
}
