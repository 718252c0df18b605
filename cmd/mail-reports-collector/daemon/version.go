package daemon

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/ubuntu/mail-reports-collector/internal/constants"
)

// installVersion adds the version command, printing the same version as the /version endpoint.
// It loads the configuration like any other command, which makes it usable to check a configuration file.
func (a *App) installVersion() {
	a.cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the collector version and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s %s/%s)\n",
				constants.CmdName, constants.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	})
}
