package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icp-relay/icp-relay/channel"
	"github.com/icp-relay/icp-relay/config"
	"github.com/icp-relay/icp-relay/coordinator"
	tmos "github.com/icp-relay/icp-relay/libs/os"
	"github.com/icp-relay/icp-relay/localchain"
	"github.com/icp-relay/icp-relay/nodekey"
	"github.com/icp-relay/icp-relay/session"
)

// RunNodeCmd starts the relay: it opens the channel contract against the
// configured seed file (on every start, including restarts), dials or
// listens for the peer relay's session, and blocks until interrupted.
var RunNodeCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the icp-relayd node",
	RunE:  runNode,
}

func runNode(cmd *cobra.Command, args []string) error {
	nk, err := nodekey.LoadOrGenNodeKey(conf.NodeKeyFile())
	if err != nil {
		return fmt.Errorf("loading node key: %w", err)
	}

	chain, err := localchain.Dial(conf.ChainEndpoint)
	if err != nil {
		return fmt.Errorf("dialing local chain endpoint %s: %w", conf.ChainEndpoint, err)
	}
	defer chain.Close()

	db, err := config.DefaultDBProvider(&config.DBContext{ID: "channel", Config: conf})
	if err != nil {
		return fmt.Errorf("opening channel database: %w", err)
	}

	contract := channel.NewContract(conf.Channel.Owner, chain, chain, chain, db)
	if conf.Channel.MaxPackets != 0 {
		if err := contract.SetMaxPackets(conf.Channel.Owner, conf.Channel.MaxPackets); err != nil {
			return fmt.Errorf("setmaxpackets: %w", err)
		}
	}
	if err := contract.SetMaxBlocks(conf.Channel.Owner, conf.Channel.MaxBlocks); err != nil {
		return fmt.Errorf("setmaxblocks: %w", err)
	}

	// The Contract's packet/receipt tables and peer cursor are in-memory
	// only (channel.Contract persists nothing of its own besides the Fork
	// Store), so every start re-seeds the channel from the trusted header
	// state in the seed file rather than attempting to resume a prior run.
	seed, err := readSeedFile(conf.SeedPath())
	if err != nil {
		return fmt.Errorf("reading seed file %s: %w", conf.SeedPath(), err)
	}
	if err := contract.OpenChannel(&seed); err != nil {
		return fmt.Errorf("openchannel: %w", err)
	}
	logger.Info("opened channel from seed file", "block_num", seed.BlockNum)

	coord := coordinator.New(
		nk.ID,
		conf.Session.ChainID,
		fmt.Sprintf("%s@local", conf.Channel.Owner),
		fmt.Sprintf("%s@peer", conf.Channel.Peer),
		contract,
		chain.BlockNum,
		chain,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accept := func(conn session.Conn) {
		s := session.New(coordinator.NewSessionID(), conn, coord, logger, coord.LocalHead)
		s.ChainID = conf.Session.ChainID
		s.Contract = coord.LocalContract()
		s.ExpectPeerContract = coord.PeerContract()
		if err := s.Start(ctx); err != nil {
			logger.Error("failed to start accepted session", "err", err)
		}
	}

	var listener *session.Listener
	if conf.Session.PeerAddress == "" {
		listener, err = session.Listen(conf.Session.ListenAddress, accept)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", conf.Session.ListenAddress, err)
		}
		logger.Info("listening for peer relay sessions", "addr", listener.Addr())
	} else {
		conn, err := session.Dial(conf.Session.PeerAddress)
		if err != nil {
			return fmt.Errorf("dialing peer relay %s: %w", conf.Session.PeerAddress, err)
		}
		s := session.New(coordinator.NewSessionID(), conn, coord, logger, coord.LocalHead)
		s.ChainID = conf.Session.ChainID
		s.Contract = coord.LocalContract()
		s.ExpectPeerContract = coord.PeerContract()
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("starting outbound session: %w", err)
		}
		logger.Info("connected to peer relay", "addr", conf.Session.PeerAddress)
	}

	logger.Info("icp-relayd started", "id", nk.ID, "sessions", coord.SessionCount())

	tmos.TrapSignal(logger, func() {
		if listener != nil {
			_ = listener.Close(context.Background())
		}
		cancel()
	})

	<-ctx.Done()
	return nil
}
