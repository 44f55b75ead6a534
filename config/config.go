package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const (
	// LogFormatPlain is a format for colored text
	LogFormatPlain = "plain"
	// LogFormatJSON is a format for json output
	LogFormatJSON = "json"
)

// NOTE: Most of the structs & relevant comments + the default configuration
// options were used to manually generate the config.toml. Please reflect
// any changes made here in the defaultConfigTemplate constant in
// config/toml.go
var (
	DefaultRelayDir  = ".icp-relay"
	defaultConfigDir = "config"
	defaultDataDir   = "data"

	defaultConfigFileName = "config.toml"
	defaultSeedFileName   = "seed.json"

	defaultNodeKeyName = "node_key.json"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultSeedFilePath   = filepath.Join(defaultConfigDir, defaultSeedFileName)
	defaultNodeKeyPath    = filepath.Join(defaultConfigDir, defaultNodeKeyName)
)

// Config defines the top level configuration for an icp-relay node.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	Session         *SessionConfig         `mapstructure:"session"`
	Channel         *ChannelConfig         `mapstructure:"channel"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

// DefaultConfig returns a default configuration for an icp-relay node.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Session:         DefaultSessionConfig(),
		Channel:         DefaultChannelConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		Session:         TestSessionConfig(),
		Channel:         TestChannelConfig(),
		Instrumentation: TestInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	cfg.Session.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Session.ValidateBasic(); err != nil {
		return errors.Wrap(err, "Error in [session] section")
	}
	if err := cfg.Channel.ValidateBasic(); err != nil {
		return errors.Wrap(err, "Error in [channel] section")
	}
	return errors.Wrap(
		cfg.Instrumentation.ValidateBasic(),
		"Error in [instrumentation] section",
	)
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for an icp-relay node.
type BaseConfig struct {
	// chainID is unexposed and immutable but here for convenience
	chainID string

	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// A custom human readable name for this relay node
	Moniker string `mapstructure:"moniker"`

	// Database backend for the fork store and channel tables: goleveldb |
	// memdb | boltdb
	DBBackend string `mapstructure:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`

	// Path to the JSON file containing the trusted BlockHeaderState used to
	// seed a freshly opened channel
	SeedFile string `mapstructure:"seed_file"`

	// A JSON file containing the node's ed25519 key; its public key is the
	// node's ID. Nothing in the relay signs with it
	NodeKey string `mapstructure:"node_key_file"`

	// TCP or UNIX socket address of the local chain node this relay submits
	// transactions to and reads blocks from
	ChainEndpoint string `mapstructure:"chain_endpoint"`
}

// DefaultBaseConfig returns a default base configuration for an icp-relay
// node.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		SeedFile:      defaultSeedFilePath,
		NodeKey:       defaultNodeKeyPath,
		Moniker:       defaultMoniker,
		LogLevel:      DefaultLogLevel(),
		LogFormat:     LogFormatPlain,
		DBBackend:     "goleveldb",
		DBPath:        "data",
		ChainEndpoint: "tcp://127.0.0.1:8888",
	}
}

// TestBaseConfig returns a base configuration for testing an icp-relay
// node.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.chainID = "icp-relay-test"
	cfg.DBBackend = "memdb"
	return cfg
}

func (cfg BaseConfig) ChainID() string {
	return cfg.chainID
}

// SeedPath returns the full path to the seed.json file.
func (cfg BaseConfig) SeedPath() string {
	return rootify(cfg.SeedFile, cfg.RootDir)
}

// NodeKeyFile returns the full path to the node_key.json file.
func (cfg BaseConfig) NodeKeyFile() string {
	return rootify(cfg.NodeKey, cfg.RootDir)
}

// DBDir returns the full path to the database directory.
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case LogFormatPlain, LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain' or 'json')")
	}
	return nil
}

// DefaultLogLevel returns a default log level of "info".
func DefaultLogLevel() string {
	return "info"
}

//-----------------------------------------------------------------------------
// SessionConfig

// SessionConfig defines the configuration for the relay's websocket
// transport: what it listens on and which peer relays it dials, the
// counterpart to Tendermint's P2PConfig for this relay's single-peer
// duplex link rather than a gossip mesh.
type SessionConfig struct {
	RootDir string `mapstructure:"home"`

	// Address to listen for incoming peer relay connections
	ListenAddress string `mapstructure:"laddr"`

	// Address of the peer relay to dial, if this node initiates the
	// connection rather than accepting it
	PeerAddress string `mapstructure:"peer_addr"`

	// Chain id this relay's own chain reports in Hello; peer sessions whose
	// Hello carries a different chain id are rejected
	ChainID string `mapstructure:"chain_id"`

	// Interval between liveness pings on an idle session
	PingInterval time.Duration `mapstructure:"ping_interval"`

	// How long to wait for the peer's initial hello before giving up
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`

	// Size, in messages, of a session's outbound write queue before it is
	// considered stalled
	WriteQueueSize int `mapstructure:"write_queue_size"`
}

// DefaultSessionConfig returns a default configuration for the session
// transport.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ListenAddress:    "tcp://0.0.0.0:8778",
		PeerAddress:      "",
		PingInterval:     3 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteQueueSize:   64,
	}
}

// TestSessionConfig returns a configuration for testing the session
// transport.
func TestSessionConfig() *SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.ListenAddress = "tcp://127.0.0.1:0"
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *SessionConfig) ValidateBasic() error {
	if cfg.PingInterval < 0 {
		return errors.New("ping_interval can't be negative")
	}
	if cfg.HandshakeTimeout < 0 {
		return errors.New("handshake_timeout can't be negative")
	}
	if cfg.WriteQueueSize <= 0 {
		return errors.New("write_queue_size must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ChannelConfig

// ChannelConfig tunes the on-chain channel contract: the rate limit and
// retention policy a freshly opened channel starts with, and the local
// account authorized to call its owner-guarded actions.
type ChannelConfig struct {
	// Account authorized to call setpeer/setmaxpackets/setmaxblocks/
	// closechannel/prune
	Owner string `mapstructure:"owner"`

	// Remote account this channel exchanges packets with
	Peer string `mapstructure:"peer"`

	// Ceiling on unreceipted outgoing packets before sendaction is
	// rate-limited; 0 means unlimited
	MaxPackets uint32 `mapstructure:"max_packets"`

	// How many header states below head the Fork Store retains before an
	// explicit prune is required
	MaxBlocks uint32 `mapstructure:"max_blocks"`
}

// DefaultChannelConfig returns a default configuration for the channel
// contract.
func DefaultChannelConfig() *ChannelConfig {
	return &ChannelConfig{
		MaxPackets: 0,
		MaxBlocks:  10000,
	}
}

// TestChannelConfig returns a configuration for testing the channel
// contract.
func TestChannelConfig() *ChannelConfig {
	cfg := DefaultChannelConfig()
	cfg.MaxPackets = 100
	cfg.MaxBlocks = 1000
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *ChannelConfig) ValidateBasic() error {
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting,
// carried over unchanged from the ambient stack: a relay's session churn,
// packet throughput, and fork-store depth are exactly the kind of
// operational signal Prometheus scraping exists for, regardless of how the
// domain itself changed.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus bool `mapstructure:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`

	// Maximum number of simultaneous connections.
	MaxOpenConnections int `mapstructure:"max_open_connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "icp_relay",
	}
}

// TestInstrumentationConfig returns a default configuration for metrics
// reporting.
func TestInstrumentationConfig() *InstrumentationConfig {
	return DefaultInstrumentationConfig()
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max_open_connections can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

//-----------------------------------------------------------------------------
// Moniker

var defaultMoniker = getDefaultMoniker()

// getDefaultMoniker returns a default moniker, which is the host name. If
// runtime fails to get the host name, "anonymous" will be returned.
func getDefaultMoniker() string {
	moniker, err := os.Hostname()
	if err != nil {
		moniker = "anonymous"
	}
	return moniker
}
