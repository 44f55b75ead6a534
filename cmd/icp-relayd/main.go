package main

import (
	"os"

	"github.com/icp-relay/icp-relay/cmd/icp-relayd/commands"
	"github.com/icp-relay/icp-relay/config"
	"github.com/icp-relay/icp-relay/libs/cli"
)

func main() {
	rootCmd := commands.RootCmd
	rootCmd.AddCommand(
		commands.InitFilesCmd,
		commands.RunNodeCmd,
		commands.ShowNodeIDCmd,
		commands.VersionCmd,
	)

	cmd := cli.PrepareBaseCmd(rootCmd, "ICP_RELAY", os.ExpandEnv("$HOME/"+config.DefaultRelayDir))
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
