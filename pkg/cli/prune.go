package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/williamokano/tddf_uploader/pkg/rotation"
	"github.com/williamokano/tddf_uploader/pkg/storage"
	"github.com/williamokano/tddf_uploader/pkg/storage/local"
)

func (a *app) pruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Apply the retention policy to processed/",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "Newest files to keep, overrides retention.processed_keep")

	cmd.RunE = a.command(func(cmd *cobra.Command, args []string, log zerolog.Logger) error {
		policy := rotation.PolicyFrom(a.cfg.Retention)
		if cmd.Flags().Changed("keep") {
			policy.Keep = keep
		}
		if policy.Keep == 0 && len(policy.Tiers) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No retention configured, nothing to prune")
			return nil
		}

		loc, err := a.cfg.Location()
		if err != nil {
			return err
		}

		archive, err := local.New(storage.Config{
			Name:    "processed",
			Type:    "local",
			Enabled: true,
			Options: map[string]interface{}{"path": a.cfg.ProcessedDir()},
		})
		if err != nil {
			return err
		}
		defer archive.Close()

		result, err := rotation.Prune(cmd.Context(), archive, policy, loc, log)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d processed files\n", len(result.Deleted), result.Listed)
		return err
	})

	return cmd
}
