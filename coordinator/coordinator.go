package coordinator

import (
	"fmt"
	"sync"

	amino "github.com/tendermint/go-amino"

	"github.com/icp-relay/icp-relay/channel"
	"github.com/icp-relay/icp-relay/forkstore"
	"github.com/icp-relay/icp-relay/libs/cmap"
	"github.com/icp-relay/icp-relay/libs/log"
	rnd "github.com/icp-relay/icp-relay/libs/rand"
	"github.com/icp-relay/icp-relay/session"
	"github.com/icp-relay/icp-relay/wire"
)

var cdc = amino.NewCodec()

// LocalHeaderProvider answers the coordinator's own chain's header for a
// given block number, so RelayPacket can attach proof material a peer
// relay can verify. It is the local-chain counterpart to
// channel.LocalActionIndex: this package never constructs headers itself,
// it only asks for them.
type LocalHeaderProvider interface {
	HeaderBytes(blockNum uint64) ([]byte, error)
}

// Coordinator is the relay node's single point of contact between the
// transport layer (Sessions) and the on-chain channel state machine (one
// Contract, one peer). It implements session.Handler directly: every
// decoded wire message from every registered Session funnels through
// OnMessage, which is the sole writer of the Contract and therefore needs
// no locking of its own beyond what the registry requires for Session
// bookkeeping.
type Coordinator struct {
	id           string
	chainID      string
	localContract string
	peerContract  string

	contract  *channel.Contract
	localHead func() uint64
	headers   LocalHeaderProvider

	sessions *registry

	dispositionMtx sync.Mutex
	dispositions   []Disposition
	peerDispositionCount *cmap.CMap

	log log.Logger
}

// New builds a Coordinator for one channel. localHead reports this node's
// own chain head for outbound pings; headers resolves local block numbers
// to encoded headers for RelayPacket. id is this node's session identity,
// generated by the caller with rand.Str if not otherwise assigned.
func New(id, chainID, localContract, peerContract string, contract *channel.Contract, localHead func() uint64, headers LocalHeaderProvider, logger log.Logger) *Coordinator {
	return &Coordinator{
		id:                   id,
		chainID:              chainID,
		localContract:        localContract,
		peerContract:         peerContract,
		contract:             contract,
		localHead:            localHead,
		headers:              headers,
		sessions:             newRegistry(),
		peerDispositionCount: cmap.NewCMap(),
		log:                  logger,
	}
}

// NewSessionID generates a fresh session identity string; grounded on
// libs/rand.Str, the same source the rest of this tree uses for anything
// that needs an opaque random token rather than a cryptographic secret.
func NewSessionID() string {
	return rnd.Str(16)
}

func (c *Coordinator) ID() string            { return c.id }
func (c *Coordinator) LocalContract() string { return c.localContract }
func (c *Coordinator) PeerContract() string  { return c.peerContract }

// LocalHead reports this node's own chain head, or 0 if no reporter was
// wired.
func (c *Coordinator) LocalHead() uint64 {
	if c.localHead == nil {
		return 0
	}
	return c.localHead()
}

// PeerHead reports the peer chain head as currently known to the channel's
// Fork Store, or 0 before the channel is open.
func (c *Coordinator) PeerHead() uint64 {
	if c.contract == nil || c.contract.Store == nil {
		return 0
	}
	head, err := c.contract.Store.Head()
	if err != nil {
		return 0
	}
	return head.BlockNum
}

// SessionCount reports how many peer sessions are currently registered.
func (c *Coordinator) SessionCount() int {
	return c.sessions.size()
}

// ForEachSession runs fn over a snapshot of the currently registered
// sessions.
func (c *Coordinator) ForEachSession(fn func(*session.Session)) {
	c.sessions.forEach(fn)
}

func (c *Coordinator) recordDisposition(d Disposition) {
	c.dispositionMtx.Lock()
	c.dispositions = append(c.dispositions, d)
	if len(c.dispositions) > 256 {
		c.dispositions = c.dispositions[len(c.dispositions)-256:]
	}
	c.dispositionMtx.Unlock()

	count, _ := c.peerDispositionCount.GetOrSet(d.PeerID, 0)
	c.peerDispositionCount.Set(d.PeerID, count.(int)+1)
	c.log.Info("session disposition", "peer", d.PeerID, "reason", fmt.Sprintf("%v", d.Reason))
}

// Dispositions returns a copy of the bounded recent-disposition log, most
// recent last.
func (c *Coordinator) Dispositions() []Disposition {
	c.dispositionMtx.Lock()
	defer c.dispositionMtx.Unlock()
	out := make([]Disposition, len(c.dispositions))
	copy(out, c.dispositions)
	return out
}

// OnHello implements session.Handler. It enforces the one-session-per-peer
// invariant and cross-checks the contract identities both sides believe
// they are relaying for before admitting the session.
func (c *Coordinator) OnHello(s *session.Session, h *wire.Hello) error {
	if c.peerContract != "" && h.Contract != "" && h.Contract != c.peerContract {
		c.recordDisposition(RejectedMessage(h.ID, fmt.Sprintf("peer claims contract %s, expected %s", h.Contract, c.peerContract)))
		return fmt.Errorf("coordinator: contract mismatch from peer %s", h.ID)
	}
	if c.localContract != "" && h.PeerContract != "" && h.PeerContract != c.localContract {
		c.recordDisposition(RejectedMessage(h.ID, fmt.Sprintf("peer addressed contract %s, we are %s", h.PeerContract, c.localContract)))
		return fmt.Errorf("coordinator: peer addressed the wrong local contract")
	}

	// One session per peer id: if an older session for this peer is still
	// registered, close it rather than reject the new one, so a peer that
	// reconnects (e.g. after a network blip) displaces its own stale
	// session instead of being locked out by it.
	c.ForEachSession(func(existing *session.Session) {
		if existing != s && existing.PeerID == h.ID {
			existing.Close(session.CloseRedundantPeer)
			c.sessions.remove(existing)
			c.recordDisposition(RedundantPeer(h.ID, "closing older session for this peer id"))
		}
	})

	if err := c.sessions.add(s); err != nil {
		c.recordDisposition(RejectedMessage(h.ID, "duplicate session for this peer id"))
		return err
	}
	c.peerContract = h.Contract
	return nil
}

// OnClose implements session.Handler: it unregisters the session and
// records why it went away.
func (c *Coordinator) OnClose(s *session.Session, reason session.CloseReason) {
	c.sessions.remove(s)
	c.recordDisposition(Disposition{PeerID: s.PeerID, Reason: string(reason)})
}

// OnMessage implements session.Handler: it translates each decoded wire
// variant into the matching channel.Contract call, per the mapping
// ChannelSeed -> OpenChannel, BlockHeaderWithMerklePath -> AddBlocks,
// ICPActions -> AddBlock followed by one OnPacket/OnReceipt per bundled
// action. Errors never propagate past this method; they are logged as
// rejected-message dispositions, matching the at-most-one-session-writes
// model where a malformed or stale message from one peer must not bring
// the whole coordinator down.
func (c *Coordinator) OnMessage(s *session.Session, msg interface{}) {
	switch m := msg.(type) {
	case *wire.ChannelSeed:
		c.handleChannelSeed(s, m)
	case *wire.BlockHeaderWithMerklePath:
		c.handleBlocks(s, m)
	case *wire.ICPActions:
		c.handleActions(s, m)
	default:
		c.recordDisposition(BadPayload(s.PeerID, fmt.Sprintf("unexpected message type %T", m)))
	}
}

func (c *Coordinator) handleChannelSeed(s *session.Session, m *wire.ChannelSeed) {
	var seed forkstore.BlockHeaderState
	if err := cdc.UnmarshalBinaryBare(m.Seed, &seed); err != nil {
		c.recordDisposition(BadPayload(s.PeerID, "undecodable channel seed: "+err.Error()))
		return
	}
	if err := c.contract.OpenChannel(&seed); err != nil {
		c.recordDisposition(RejectedMessage(s.PeerID, "openchannel: "+err.Error()))
		return
	}
	c.recordDisposition(ChannelOpened(s.PeerID, fmt.Sprintf("seeded at block %d", seed.BlockNum)))
}

func (c *Coordinator) handleBlocks(s *session.Session, m *wire.BlockHeaderWithMerklePath) {
	headers := make([]forkstore.Header, 0, len(m.Headers))
	for _, hb := range m.Headers {
		var h forkstore.Header
		if err := cdc.UnmarshalBinaryBare(hb, &h); err != nil {
			c.recordDisposition(BadPayload(s.PeerID, "undecodable header: "+err.Error()))
			return
		}
		headers = append(headers, h)
	}
	if len(headers) == 1 {
		if _, err := c.contract.AddBlock(headers[0]); err != nil {
			c.recordDisposition(RejectedMessage(s.PeerID, "addblock: "+err.Error()))
		}
		return
	}
	if _, err := c.contract.AddBlocks(headers); err != nil {
		c.recordDisposition(RejectedMessage(s.PeerID, "addblocks: "+err.Error()))
	}
}

// handleActions applies one block's worth of cross-chain actions. Per
// wire.ICPActions's own doc, PeerActions/Actions/ActionReceipts/
// ActionDigests are index-aligned; at each index, a non-empty Actions
// entry is a packet destined for OnPacket and a non-empty ActionReceipts
// entry is a receipt destined for OnReceipt, the two being mutually
// exclusive per entry. PeerActions is kept for observability only — it is
// the peer chain's own action record for the entry, outside anything the
// Contract itself needs to verify.
func (c *Coordinator) handleActions(s *session.Session, m *wire.ICPActions) {
	if !m.EqualLength() {
		c.recordDisposition(BadPayload(s.PeerID, "ICPActions arrays not equal length"))
		return
	}

	var header forkstore.Header
	if err := cdc.UnmarshalBinaryBare(m.BlockHeader, &header); err != nil {
		c.recordDisposition(BadPayload(s.PeerID, "undecodable ICPActions header: "+err.Error()))
		return
	}
	if _, err := c.contract.AddBlock(header); err != nil {
		c.recordDisposition(RejectedMessage(s.PeerID, "addblock: "+err.Error()))
		return
	}

	for i := range m.Actions {
		digests := m.ActionDigests[i]
		switch {
		case len(m.Actions[i]) > 0:
			ia := channel.ICPAction{ActionBytes: m.Actions[i], BlockID: header.ID, ActionDigests: digests}
			if _, err := c.contract.OnPacket(ia); err != nil {
				c.recordDisposition(RejectedMessage(s.PeerID, "onpacket: "+err.Error()))
			}
		case len(m.ActionReceipts[i]) > 0:
			ia := channel.ICPAction{ReceiptBytes: m.ActionReceipts[i], BlockID: header.ID, ActionDigests: digests}
			if err := c.contract.OnReceipt(ia); err != nil {
				c.recordDisposition(RejectedMessage(s.PeerID, "onreceipt: "+err.Error()))
			}
		}
	}
}

// PushTransaction originates a new outbound packet: it assigns the next
// sequence number via the channel contract and records it locally. The
// packet is not yet visible to the peer; RelayPacket broadcasts the proof
// once sendAction's containing local block is known, mirroring how the
// original relay only forwards a transaction's effects once it has landed
// and produced a provable block.
func (c *Coordinator) PushTransaction(sendAction, receiptAction []byte, expiration uint64) (*channel.Packet, error) {
	seq := c.contract.NextOutgoingPacketSeq()
	env, err := channel.EncodePacketEnvelope(channel.PacketEnvelope{Seq: seq, Expiration: expiration, Payload: sendAction})
	if err != nil {
		return nil, err
	}
	return c.contract.SendAction(seq, env, expiration, receiptAction)
}

// RelayPacket broadcasts a previously pushed packet's proof to every
// registered session, once its sendaction's local block and Merkle
// digests are available. blockNum must be the packet's LocalBlockNum.
func (c *Coordinator) RelayPacket(packetSeq, blockNum uint64) error {
	headerBytes, err := c.headers.HeaderBytes(blockNum)
	if err != nil {
		return err
	}
	packetDigests, _, err := c.contract.GenProof(packetSeq, 0)
	if err != nil {
		return err
	}

	msg := &wire.ICPActions{
		BlockHeader:    headerBytes,
		PeerActions:    [][]byte{{}},
		Actions:        [][]byte{encodedPacketAction(c.contract, packetSeq)},
		ActionReceipts: [][]byte{{}},
		ActionDigests:  [][][]byte{packetDigests},
	}
	c.sessions.forEach(func(s *session.Session) {
		if err := s.Enqueue(msg); err != nil {
			c.recordDisposition(Disposition{PeerID: s.PeerID, Reason: "enqueue failed: " + err.Error()})
		}
	})
	return nil
}

// encodedPacketAction recovers the wire bytes for a previously sent
// packet, for re-broadcast by RelayPacket.
func encodedPacketAction(c *channel.Contract, seq uint64) []byte {
	for _, p := range c.Packets() {
		if p.Seq == seq {
			return p.SendAction
		}
	}
	return nil
}

// BroadcastBlocks relays one or more of this node's own chain headers to
// every connected peer session, for the peer's forkstore to ingest via
// addblock/addblocks.
func (c *Coordinator) BroadcastBlocks(headers [][]byte) {
	msg := &wire.BlockHeaderWithMerklePath{Headers: headers}
	c.sessions.forEach(func(s *session.Session) {
		if err := s.Enqueue(msg); err != nil {
			c.recordDisposition(Disposition{PeerID: s.PeerID, Reason: "enqueue failed: " + err.Error()})
		}
	})
}

// EncodeHeader is a convenience wrapper so callers outside this package
// (the forkstore-producing side of the local chain) can build wire-ready
// header bytes with the same codec OnMessage decodes with.
func EncodeHeader(h forkstore.Header) ([]byte, error) {
	return cdc.MarshalBinaryBare(h)
}

// EncodeSeed is the ChannelSeed-side counterpart of EncodeHeader.
func EncodeSeed(seed forkstore.BlockHeaderState) ([]byte, error) {
	return cdc.MarshalBinaryBare(seed)
}
