package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/williamokano/tddf_uploader/pkg/ingest"
	"github.com/williamokano/tddf_uploader/pkg/ledger"
	"github.com/williamokano/tddf_uploader/pkg/storage"
)

func (a *app) uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload every file waiting in the inbox",
		Long: `Upload claims the files in inbox/, wakes the MMS server, and ships them in
batches to every enabled storage destination. Between batches it waits
until the server queue is idle. Files accepted by at least one destination
move to processed/; the run report is written to logs/.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().IntVar(&a.overrides.BatchSize, "batch-size", 0, "Files per batch (default 5)")
	cmd.Flags().IntVar(&a.overrides.PollingInterval, "polling-interval", 0, "Seconds between queue checks (default 10)")

	cmd.RunE = a.command(func(cmd *cobra.Command, args []string, log zerolog.Logger) error {
		ctx := cmd.Context()

		backends, err := ingest.OpenBackends(ctx, a.cfg, a.version, log)
		if err != nil {
			return err
		}
		defer storage.CloseAll(backends)

		store, closeStore, err := a.openLedger(ctx, log)
		switch {
		case errors.Is(err, ErrLedgerDisabled):
			log.Debug().Msg("ledger disabled, duplicate detection off")
		case err != nil:
			return err
		default:
			defer closeStore()
		}

		opts := ingest.Options{
			Config:   a.cfg,
			Backends: backends,
			Ledger:   store,
			Logger:   log,
		}
		if a.cfg.Server.URL != "" {
			client, err := a.client(log)
			if err != nil {
				return err
			}
			opts.Server = client
		} else {
			log.Warn().Msg("server url not configured, skipping wake-up and queue checks")
		}

		pipeline, err := ingest.New(opts)
		if err != nil {
			return err
		}

		report, err := pipeline.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d, duplicates %d, failed %d, skipped %d of %d files\n",
			report.Successful, report.Duplicates, report.Failed, report.Skipped, len(report.Files))
		if report.Delays.Parsed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Processing delay: min %s, max %s\n",
				report.Delays.MinText, report.Delays.MaxText)
		}

		if report.Failed > 0 {
			return fmt.Errorf("%d of %d: %w", report.Failed, len(report.Files), ErrUploadFailed)
		}
		return nil
	})

	return cmd
}

// openLedger connects to and migrates the ledger.
// It returns ErrLedgerDisabled when no DSN is configured.
func (a *app) openLedger(ctx context.Context, log zerolog.Logger) (ledger.Store, func(), error) {
	pg, err := ledger.Open(ctx, a.cfg.Ledger.DSN)
	if errors.Is(err, ledger.ErrDisabled) {
		return nil, nil, ErrLedgerDisabled
	}
	if err != nil {
		return nil, nil, err
	}

	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := pg.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close ledger")
		}
	}
	return pg, closeFn, nil
}
