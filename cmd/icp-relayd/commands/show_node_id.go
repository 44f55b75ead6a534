package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icp-relay/icp-relay/nodekey"
)

// ShowNodeIDCmd prints this relay's persistent session identity.
var ShowNodeIDCmd = &cobra.Command{
	Use:   "show-node-id",
	Short: "Print this relay's node id",
	RunE: func(cmd *cobra.Command, args []string) error {
		nk, err := nodekey.LoadOrGenNodeKey(conf.NodeKeyFile())
		if err != nil {
			return err
		}
		fmt.Println(nk.ID)
		return nil
	},
}
