package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	cfg "github.com/icp-relay/icp-relay/config"
	"github.com/icp-relay/icp-relay/forkstore"
	tmos "github.com/icp-relay/icp-relay/libs/os"
	"github.com/icp-relay/icp-relay/nodekey"
)

// InitFilesCmd initializes a fresh home directory: config.toml, a node
// signing key, and a placeholder seed file the operator is expected to
// replace with the peer chain's real trusted BlockHeaderState before the
// channel can be opened.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an icp-relayd home directory",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	cfg.EnsureRoot(conf.RootDir)

	nodeKeyFile := conf.NodeKeyFile()
	if tmos.FileExists(nodeKeyFile) {
		logger.Info("found node key", "path", nodeKeyFile)
	} else {
		nk, err := nodekey.LoadOrGenNodeKey(nodeKeyFile)
		if err != nil {
			return fmt.Errorf("generating node key: %w", err)
		}
		logger.Info("generated node key", "path", nodeKeyFile, "id", nk.ID)
	}

	seedFile := conf.SeedPath()
	if tmos.FileExists(seedFile) {
		logger.Info("found seed file", "path", seedFile)
	} else {
		placeholder := forkstore.BlockHeaderState{
			Header:          forkstore.Header{BlockNum: 0},
			CurrentSchedule: forkstore.ProducerSchedule{Version: 0},
		}
		if err := writeSeedFile(seedFile, placeholder); err != nil {
			return fmt.Errorf("writing placeholder seed file: %w", err)
		}
		logger.Info("wrote placeholder seed file; replace with the peer chain's trusted header state before starting", "path", seedFile)
	}

	if err := cfg.WriteConfigFile(conf.RootDir, conf); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	logger.Info("initialized icp-relayd home", "home", conf.RootDir)
	return nil
}
