package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	tmos "github.com/icp-relay/icp-relay/libs/os"
	tmrand "github.com/icp-relay/icp-relay/libs/rand"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't exist,
// and panics if it fails.
func EnsureRoot(rootDir string) {
	if err := tmos.EnsureDir(rootDir, defaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), defaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultDataDir), defaultDirPerm); err != nil {
		panic(err.Error())
	}
}

// WriteConfigFile renders config using the template and writes it to configFilePath.
// This function is called by cmd/icp-relayd's init command.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by
// the path, in the default toml template and does not mangle the path
// or filename at all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return writeFile(path, buffer.Bytes(), 0644)
}

func writeDefaultConfigFileIfNone(rootDir string) error {
	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if !tmos.FileExists(configFilePath) {
		return WriteConfigFile(rootDir, DefaultConfig())
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/icp-relay/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.icp-relay" by default, but could be changed via the --home flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this relay node
moniker = "{{ .BaseConfig.Moniker }}"

# Database backend for the fork store and channel tables: goleveldb | memdb | boltdb
db-backend = "{{ .BaseConfig.DBBackend }}"

# Database directory
db-dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging, including package level options
log-level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log-format = "{{ .BaseConfig.LogFormat }}"

# Path to the JSON file containing the trusted BlockHeaderState used to seed
# a freshly opened channel
seed-file = "{{ js .BaseConfig.SeedFile }}"

# A JSON file containing the node's ed25519 key; its public key is the
# node's ID. Nothing in the relay signs with it
node-key-file = "{{ js .BaseConfig.NodeKey }}"

# TCP or UNIX socket address of the local chain node this relay submits
# transactions to and reads blocks from
chain-endpoint = "{{ .BaseConfig.ChainEndpoint }}"


#######################################################################
###                 Advanced Configuration Options                  ###
#######################################################################

#######################################################
###        Session Transport Configuration          ###
#######################################################
[session]

# Address to listen for incoming peer relay connections
laddr = "{{ .Session.ListenAddress }}"

# Address of the peer relay to dial, if this node initiates the connection
# rather than accepting it
peer-addr = "{{ .Session.PeerAddress }}"

# Chain id this relay's own chain reports in hello; peer sessions whose
# hello carries a different chain id are rejected
chain-id = "{{ .Session.ChainID }}"

# Interval between liveness pings on an idle session
ping-interval = "{{ .Session.PingInterval }}"

# How long to wait for the peer's initial hello before giving up
handshake-timeout = "{{ .Session.HandshakeTimeout }}"

# Size, in messages, of a session's outbound write queue before it is
# considered stalled
write-queue-size = {{ .Session.WriteQueueSize }}


#######################################################
###        Channel Contract Configuration           ###
#######################################################
[channel]

# Account authorized to call setpeer/setmaxpackets/setmaxblocks/
# closechannel/prune
owner = "{{ .Channel.Owner }}"

# Remote account this channel exchanges packets with
peer = "{{ .Channel.Peer }}"

# Ceiling on unreceipted outgoing packets before sendaction is rate-limited;
# 0 means unlimited
max-packets = {{ .Channel.MaxPackets }}

# How many header states below head the Fork Store retains before an
# explicit prune is required
max-blocks = {{ .Channel.MaxBlocks }}


#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# PrometheusListenAddr.
# Check out the documentation for the list of available metrics.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus-listen-addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Maximum number of simultaneous connections.
# If you want to accept a larger number than the default, make sure
# you increase your OS limits.
# 0 - unlimited.
max-open-connections = {{ .Instrumentation.MaxOpenConnections }}

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`

/****** these are for test settings ***********/

func ResetTestRoot(dir, testName string) (*Config, error) {
	return ResetTestRootWithChainID(dir, testName, "")
}

func ResetTestRootWithChainID(dir, testName string, chainID string) (*Config, error) {
	// create a unique, concurrency-safe test directory under dir
	rootDir, err := os.MkdirTemp(dir, fmt.Sprintf("%s-%s_", chainID, testName))
	if err != nil {
		return nil, err
	}
	// ensure config and data subdirs are created
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), defaultDirPerm); err != nil {
		return nil, err
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultDataDir), defaultDirPerm); err != nil {
		return nil, err
	}

	conf := DefaultConfig()
	seedFilePath := filepath.Join(rootDir, conf.SeedFile)

	// Write default config file if missing.
	if err := writeDefaultConfigFileIfNone(rootDir); err != nil {
		return nil, err
	}

	if !tmos.FileExists(seedFilePath) {
		if chainID == "" {
			chainID = "icp-relay-test"
		}
		if err := writeFile(seedFilePath, []byte(testSeedJSON), 0644); err != nil {
			return nil, err
		}
	}

	config := TestConfig().SetRoot(rootDir)
	config.Instrumentation.Namespace = fmt.Sprintf("%s_%s_%s", testName, chainID, tmrand.Str(16))
	return config, nil
}

func writeFile(filePath string, contents []byte, mode os.FileMode) error {
	if err := os.WriteFile(filePath, contents, mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// testSeedJSON is a minimal BlockHeaderState, JSON-encoded for operator
// readability: the seed file is read once at openchannel time and never
// exchanged over the wire, so it uses encoding/json rather than the
// amino codec the session/wire layer uses for everything else.
const testSeedJSON = `{
  "BlockNum": 1,
  "Previous": "0000000000000000000000000000000000000000000000000000000000000000",
  "ID": "0100000000000000000000000000000000000000000000000000000000000000",
  "ScheduleDigest": null,
  "ActionMerkleRoot": null,
  "ActionDigests": null,
  "CurrentSchedule": {"Version": 1, "Digest": null},
  "PendingSchedule": null,
  "Confirmed": null,
  "LIB": 1
}`
