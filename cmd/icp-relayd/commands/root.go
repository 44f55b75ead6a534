// Package commands wires the icp-relayd binary's cobra command tree: init,
// start, show-node-id, and version, all sharing one *config.Config loaded
// from viper by the persistent pre-run hook libs/cli.PrepareBaseCmd
// installs on RootCmd.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/icp-relay/icp-relay/config"
	"github.com/icp-relay/icp-relay/libs/log"
)

// conf is populated by RootCmd's PersistentPreRunE, before any subcommand's
// RunE runs.
var conf = config.DefaultConfig()

// logger is built from conf once the root directory is known, shared by
// every subcommand.
var logger log.Logger

// RootCmd is the base command every subcommand attaches to.
var RootCmd = &cobra.Command{
	Use:   "icp-relayd",
	Short: "ICP relay node: bridges a channel contract between two chains over a duplex session link",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == VersionCmd.Name() {
			return nil
		}

		conf.RootDir = viper.GetString("home")
		if err := viper.Unmarshal(conf); err != nil {
			return fmt.Errorf("decoding config: %w", err)
		}
		conf.SetRoot(conf.RootDir)
		if err := conf.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid configuration data: %w", err)
		}

		lg, err := log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
		if err != nil {
			return fmt.Errorf("constructing logger: %w", err)
		}
		logger = lg
		return nil
	},
}
