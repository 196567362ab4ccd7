package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/williamokano/tddf_uploader/pkg/ingest"
	"github.com/williamokano/tddf_uploader/pkg/reconcile"
	"github.com/williamokano/tddf_uploader/pkg/storage"
)

func (a *app) reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the ledger with what each storage destination holds",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = a.command(func(cmd *cobra.Command, args []string, log zerolog.Logger) error {
		ctx := cmd.Context()

		store, closeStore, err := a.openLedger(ctx, log)
		if err != nil {
			return err
		}
		defer closeStore()

		backends, err := ingest.OpenBackends(ctx, a.cfg, a.version, log)
		if err != nil {
			return err
		}
		defer storage.CloseAll(backends)

		results, err := reconcile.Run(ctx, store, backends, log)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DESTINATION\tTYPE\tLEDGER\tSTORED\tMISSING\tEXTRA\tRESULT")
		for _, r := range results {
			outcome := "ok"
			switch {
			case r.Skipped:
				outcome = "skipped"
			case r.Error != "":
				outcome = "error: " + r.Error
			case !r.Matched():
				outcome = "mismatch"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				r.Backend, r.Type, r.LedgerCount, r.BackendCount, len(r.Missing), len(r.Extra), outcome)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if !reconcile.AllMatched(results) {
			return ErrMismatch
		}
		return nil
	})

	return cmd
}
