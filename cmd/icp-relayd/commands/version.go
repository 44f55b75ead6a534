package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icp-relay/icp-relay/version"
)

// VersionCmd prints the build version. It skips RootCmd's config-loading
// pre-run since it has no need of a home directory.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the icp-relayd version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Version)
		return nil
	},
}
