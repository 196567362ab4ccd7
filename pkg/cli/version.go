package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/williamokano/tddf_uploader/pkg/mmsapi"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tddf-uploader %s (%s, %s/%s)\n", a.version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(cmd.OutOrStdout(), "User-Agent: %s\n", mmsapi.UserAgent(a.version))
		},
	}
}
