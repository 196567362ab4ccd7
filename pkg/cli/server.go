package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func (a *app) pingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check the MMS server is running and accepts the API key",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = a.command(func(cmd *cobra.Command, args []string, log zerolog.Logger) error {
		client, err := a.client(log)
		if err != nil {
			return err
		}

		resp, err := client.Ping(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Server:\t%s\n", client.BaseURL())
		fmt.Fprintf(w, "Status:\t%s\n", resp.Status)
		fmt.Fprintf(w, "Environment:\t%s\n", resp.Environment)
		fmt.Fprintf(w, "Service:\t%s\n", resp.ServiceStatus)
		fmt.Fprintf(w, "API key:\t%s\n", resp.KeyStatus)
		if resp.KeyUser != "" {
			fmt.Fprintf(w, "Key user:\t%s\n", resp.KeyUser)
		}
		if resp.Message != "" {
			fmt.Fprintf(w, "Message:\t%s\n", resp.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if !resp.Ready() {
			return ErrNotReady
		}
		return nil
	})

	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the MMS processing queue",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = a.command(func(cmd *cobra.Command, args []string, log zerolog.Logger) error {
		client, err := a.client(log)
		if err != nil {
			return err
		}

		status, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Pending:\t%d\n", status.Pending)
		fmt.Fprintf(w, "Processing:\t%d\n", status.Processing)
		fmt.Fprintf(w, "Completed:\t%d\n", status.Completed)
		fmt.Fprintf(w, "Failed:\t%d\n", status.Failed)
		fmt.Fprintf(w, "Busy:\t%t\n", status.IsBusy)
		return w.Flush()
	})

	return cmd
}
