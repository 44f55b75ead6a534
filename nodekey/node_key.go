// Package nodekey is the relay's persistent identity: an ed25519 key pair
// whose hex-encoded public key is the node's ID, grounded on Tendermint's
// own node-key persistence pattern but scoped to a single key instead of a
// full p2p identity. Nothing in the relay signs with the private key.
package nodekey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"

	tmos "github.com/icp-relay/icp-relay/libs/os"
)

// NodeKey is the relay's identity key.
type NodeKey struct {
	ID      string            `json:"id"`
	PrivKey ed25519.PrivateKey `json:"priv_key"`
}

type nodeKeyJSON struct {
	ID      string `json:"id"`
	PrivKey string `json:"priv_key"`
}

// MarshalJSON hex-encodes the private key rather than relying on its
// default base64 []byte encoding, matching the hex IDs used elsewhere in
// this package.
func (nk NodeKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeKeyJSON{ID: nk.ID, PrivKey: hex.EncodeToString(nk.PrivKey)})
}

func (nk *NodeKey) UnmarshalJSON(data []byte) error {
	var aux nodeKeyJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	priv, err := hex.DecodeString(aux.PrivKey)
	if err != nil {
		return err
	}
	nk.ID = aux.ID
	nk.PrivKey = ed25519.PrivateKey(priv)
	return nil
}

// PubKey returns the node's public key.
func (nk NodeKey) PubKey() ed25519.PublicKey {
	return nk.PrivKey.Public().(ed25519.PublicKey)
}

// SaveAs persists the NodeKey to filePath.
func (nk NodeKey) SaveAs(filePath string) error {
	jsonBytes, err := json.Marshal(nk)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, jsonBytes, 0600)
}

// LoadOrGenNodeKey attempts to load the NodeKey from filePath. If the file
// does not exist, it generates and persists a new one.
func LoadOrGenNodeKey(filePath string) (NodeKey, error) {
	if tmos.FileExists(filePath) {
		return LoadNodeKey(filePath)
	}

	nodeKey, err := GenNodeKey()
	if err != nil {
		return NodeKey{}, err
	}
	if err := nodeKey.SaveAs(filePath); err != nil {
		return NodeKey{}, err
	}
	return nodeKey, nil
}

// GenNodeKey generates a new node key.
func GenNodeKey() (NodeKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return NodeKey{}, err
	}
	return NodeKey{ID: IDFromPubKey(pub), PrivKey: priv}, nil
}

// LoadNodeKey loads a NodeKey from filePath.
func LoadNodeKey(filePath string) (NodeKey, error) {
	jsonBytes, err := os.ReadFile(filePath)
	if err != nil {
		return NodeKey{}, err
	}
	var nodeKey NodeKey
	if err := json.Unmarshal(jsonBytes, &nodeKey); err != nil {
		return NodeKey{}, err
	}
	nodeKey.ID = IDFromPubKey(nodeKey.PubKey())
	return nodeKey, nil
}

// IDFromPubKey derives the node's canonical ID, the hex-encoded public key.
func IDFromPubKey(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}
