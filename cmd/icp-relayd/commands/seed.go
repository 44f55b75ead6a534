package commands

import (
	"encoding/json"
	"os"

	"github.com/icp-relay/icp-relay/forkstore"
)

func writeSeedFile(path string, seed forkstore.BlockHeaderState) error {
	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readSeedFile(path string) (forkstore.BlockHeaderState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return forkstore.BlockHeaderState{}, err
	}
	var seed forkstore.BlockHeaderState
	if err := json.Unmarshal(data, &seed); err != nil {
		return forkstore.BlockHeaderState{}, err
	}
	return seed, nil
}
