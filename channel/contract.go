// Package channel is the on-chain channel state machine: the deterministic,
// single-writer contract that maintains a light-client view of the peer
// chain via forkstore, accepts inbound packets proved against that view,
// emits receipts, numbers outbound packets, and enforces the peer's rate
// and lifecycle invariants. It mirrors the original icp contract's action
// set (icp.hpp: setpeer/setmaxpackets/setmaxblocks/openchannel/closechannel/
// addblock(s)/onpacket/onreceipt/oncleanup/cleanup/sendaction/genproof/prune)
// but expressed as plain Go methods returning errors instead of EOSIO
// action dispatch, with the host's transaction-rollback behavior modeled by
// every method either fully committing or returning an error with no
// mutation at all.
package channel

import (
	"sort"

	dbm "github.com/tendermint/tm-db"

	"github.com/icp-relay/icp-relay/crypto/merkle"
	"github.com/icp-relay/icp-relay/forkstore"
)

// ActionDispatcher executes an inner action inline on the host chain. Its
// semantics are entirely delegated to the host; the channel contract only
// needs to know whether the dispatch succeeded.
type ActionDispatcher interface {
	Dispatch(actionBytes []byte) error
}

// Clock abstracts wall-clock time and the host's current block number so
// expiration checks and genproof bookkeeping are deterministic in tests;
// production wiring passes the host chain's block time and height.
type Clock interface {
	Now() uint64      // unix seconds
	BlockNum() uint64 // host chain's current block number
}

// LocalActionIndex is the host's own action-Merkle-tree index for this
// chain's blocks, the local-side counterpart to the peer-chain view held in
// forkstore. genproof needs it to re-derive a lost Merkle path; it is an
// external collaborator exactly like the host wire codec, never
// implemented by this package.
type LocalActionIndex interface {
	ActionDigests(blockNum uint64) ([][]byte, error)
}

// Contract is one channel's full on-chain state: the Fork Store view of the
// peer chain, the peer cursor record, the rate meter, and the packet and
// receipt tables. A Contract is not safe for concurrent use by design —
// the host chain's transaction model is the single-writer boundary,
// matching §5 of the channel's concurrency model.
type Contract struct {
	Store *forkstore.Store

	peer        PeerRecord
	meter       Meter
	blocksLimit BlocksLimit
	packets     map[uint64]*Packet
	receipts    map[uint64]*Receipt

	dispatcher ActionDispatcher
	clock      Clock
	localIndex LocalActionIndex
	owner      string
	db         dbm.DB
}

// NewContract constructs an unopened channel contract. dispatcher executes
// inner send actions on onpacket; localIndex answers genproof's lookups
// against this chain's own blocks; owner is the account authorized to call
// the owner-guarded actions; db backs the Fork Store created by OpenChannel
// (a fresh dbm.NewMemDB() is the natural choice in tests; production
// wiring passes the same DBProvider-sourced backend the rest of the relay
// uses, namespaced per channel).
func NewContract(owner string, dispatcher ActionDispatcher, clock Clock, localIndex LocalActionIndex, db dbm.DB) *Contract {
	return &Contract{
		packets:    make(map[uint64]*Packet),
		receipts:   make(map[uint64]*Receipt),
		dispatcher: dispatcher,
		clock:      clock,
		localIndex: localIndex,
		owner:      owner,
		db:         db,
		meter:      Meter{MaxPackets: ^uint32(0)},
	}
}

func (c *Contract) requireOwner(caller, action string) error {
	if caller != c.owner {
		return ErrUnauthorized{Action: action}
	}
	return nil
}

// SetPeer updates the remote account this channel exchanges packets with.
// Grounded on icp.hpp's setpeer/update_peer: the host is expected to call
// this before openchannel or after closechannel, never on a live channel
// with outstanding packets, though the contract itself does not need to
// enforce that ordering since update_peer in the original only updates the
// stored peer name.
func (c *Contract) SetPeer(caller, peer string) error {
	if err := c.requireOwner(caller, "setpeer"); err != nil {
		return err
	}
	c.peer.Peer = peer
	return nil
}

// SetMaxPackets sets the rate-limit ceiling on unreceipted outgoing
// packets.
func (c *Contract) SetMaxPackets(caller string, max uint32) error {
	if err := c.requireOwner(caller, "setmaxpackets"); err != nil {
		return err
	}
	c.meter.MaxPackets = max
	return nil
}

// SetMaxBlocks bounds how many header states the Fork Store retains below
// head; Prune is the mechanism that actually enforces this bound, SetMaxBlocks
// just records the policy.
func (c *Contract) SetMaxBlocks(caller string, max uint32) error {
	if err := c.requireOwner(caller, "setmaxblocks"); err != nil {
		return err
	}
	c.blocksLimit.MaxBlocks = max
	return nil
}

// OpenChannel seeds the Fork Store with a trusted BlockHeaderState and
// resets the peer cursors, meter, and tables. Fails ErrAlreadyOpen if the
// Fork Store already holds a seed.
func (c *Contract) OpenChannel(seed *forkstore.BlockHeaderState) error {
	if c.Store != nil {
		return ErrAlreadyOpen{}
	}
	store := forkstore.NewStore(c.db)
	if err := store.Init(seed); err != nil {
		return err
	}
	c.Store = store
	c.packets = make(map[uint64]*Packet)
	c.receipts = make(map[uint64]*Receipt)
	c.peer.LastOutgoingPacketSeq = 0
	c.peer.LastIncomingPacketSeq = 0
	c.peer.LastOutgoingReceiptSeq = 0
	c.peer.LastIncomingReceiptSeq = 0
	c.meter.CurrentPackets = 0
	return nil
}

// CloseChannel is owner-authorized and irreversible: it clears the Fork
// Store, packet/receipt tables, meter, and peer record.
func (c *Contract) CloseChannel(caller string) error {
	if err := c.requireOwner(caller, "closechannel"); err != nil {
		return err
	}
	if c.Store == nil {
		return ErrNotOpen{}
	}
	c.Store = nil
	c.packets = make(map[uint64]*Packet)
	c.receipts = make(map[uint64]*Receipt)
	c.peer = PeerRecord{}
	c.meter.CurrentPackets = 0
	return nil
}

// AddBlock delegates a single header to the Fork Store.
func (c *Contract) AddBlock(h forkstore.Header) (forkstore.Outcome, error) {
	if c.Store == nil {
		return 0, ErrNotOpen{}
	}
	return c.Store.AddHeader(h)
}

// AddBlocks delegates a batch of headers to the Fork Store. The batch must
// extend head by exactly one with its first header, and is rejected
// atomically if unlinkable.
func (c *Contract) AddBlocks(hs []forkstore.Header) ([]forkstore.Outcome, error) {
	if c.Store == nil {
		return nil, ErrNotOpen{}
	}
	if len(hs) > 0 {
		head, err := c.Store.Head()
		if err != nil {
			return nil, err
		}
		if hs[0].BlockNum != head.BlockNum+1 {
			return nil, forkstore.ErrUnlinkable{BlockID: hs[0].ID, Previous: hs[0].Previous}
		}
	}
	return c.Store.AddHeaderBatch(hs)
}

// SendAction records a new outgoing Packet. seq must equal
// last_outgoing_packet_seq + 1; fails ErrRateLimited when the meter is
// saturated, ErrSeqDup otherwise.
func (c *Contract) SendAction(seq uint64, sendAction []byte, expiration uint64, receiptAction []byte) (*Packet, error) {
	if c.Store == nil {
		return nil, ErrNotOpen{}
	}
	if c.meter.CurrentPackets >= c.meter.MaxPackets {
		return nil, ErrRateLimited{MaxPackets: c.meter.MaxPackets}
	}
	want := c.peer.LastOutgoingPacketSeq + 1
	if seq != want {
		return nil, ErrSeqDup{Got: seq, Want: want}
	}

	p := &Packet{
		Seq:           seq,
		Expiration:    expiration,
		SendAction:    sendAction,
		ReceiptAction: receiptAction,
		Status:        PacketUnreceipted,
		LocalBlockNum: c.clock.BlockNum(),
	}
	c.packets[seq] = p
	c.peer.LastOutgoingPacketSeq = seq
	c.meter.CurrentPackets++
	return p, nil
}

// OnPacket is the peer-side consumption of a Packet proved against this
// channel's Fork Store view of the sender chain. It verifies the block is
// final, verifies the Merkle proof, checks ordering, executes the inner
// action (unless expired), and records a Receipt.
func (c *Contract) OnPacket(ia ICPAction) (*Receipt, error) {
	if c.Store == nil {
		return nil, ErrNotOpen{}
	}

	if _, err := c.verifyAgainstBlock(ia); err != nil {
		return nil, err
	}

	env, err := DecodePacketEnvelope(ia.ActionBytes)
	if err != nil {
		return nil, err
	}

	seq := c.peer.LastIncomingPacketSeq + 1
	if env.Seq != seq {
		return nil, ErrSeqGap{Got: env.Seq, Want: seq}
	}

	// The receipt OnPacket produces here is this side's outgoing
	// acknowledgement to the peer, so it advances last_outgoing_receipt_seq,
	// the same cursor SendAction's receipts would if this side ever sent
	// one.
	r := &Receipt{Seq: c.peer.LastOutgoingReceiptSeq + 1, PacketSeq: seq, LocalBlockNum: c.clock.BlockNum()}

	if env.Expiration != 0 && c.clock.Now() >= env.Expiration {
		r.Status = ReceiptExpiredStatus
	} else {
		if err := c.dispatcher.Dispatch(env.Payload); err != nil {
			return nil, err
		}
		r.Status = ReceiptExecuted
	}

	c.receipts[r.Seq] = r
	c.peer.LastIncomingPacketSeq = seq
	c.peer.LastOutgoingReceiptSeq = r.Seq
	return r, nil
}

// OnReceipt is the sender-side acknowledgement of a previously-sent Packet,
// gated by the same Merkle/LIB checks as OnPacket. It marks the local
// Packet's terminal status and releases its meter slot.
func (c *Contract) OnReceipt(ia ICPAction) error {
	if c.Store == nil {
		return ErrNotOpen{}
	}

	if _, err := c.verifyAgainstBlock(ia); err != nil {
		return err
	}

	env, err := DecodeReceiptEnvelope(ia.ReceiptBytes)
	if err != nil {
		return err
	}

	// This is the peer's acknowledgement of a Packet we sent, so it advances
	// last_incoming_receipt_seq, the cursor that validates receipts arriving
	// from the peer.
	seq := c.peer.LastIncomingReceiptSeq + 1
	if env.Seq != seq {
		return ErrSeqGap{Got: env.Seq, Want: seq}
	}

	p, ok := c.packets[env.PacketSeq]
	if !ok {
		return ErrPacketNotFound{Seq: env.PacketSeq}
	}

	if env.Expired {
		p.Status = PacketExpired
	} else {
		p.Status = PacketReceipted
	}
	c.peer.LastIncomingReceiptSeq = seq
	if c.meter.CurrentPackets > 0 {
		c.meter.CurrentPackets--
	}
	return nil
}

// verifyAgainstBlock implements the shared Merkle/LIB gate used by both
// OnPacket and OnReceipt: the referenced block must be final, and the
// supplied digests must reconstruct its action-Merkle-root.
func (c *Contract) verifyAgainstBlock(ia ICPAction) (*forkstore.BlockHeaderState, error) {
	block, err := c.Store.Find(ia.BlockID)
	if err != nil {
		return nil, err
	}
	if block.BlockNum > c.Store.LIB() {
		return nil, ErrBlockNotFinal{BlockNum: block.BlockNum, LIB: c.Store.LIB()}
	}

	root := merkle.SimpleHashFromByteSlices(ia.ActionDigests)
	if string(root) != string(block.ActionMerkleRoot) {
		return nil, ErrBadMerkleProof{BlockNum: block.BlockNum}
	}
	return block, nil
}

// OnCleanup is the peer's cleanup signal. It records nothing: it only runs
// the same Merkle/LIB check as OnPacket and OnReceipt and returns its
// result, leaving the actual deletion to a local Cleanup or Prune call.
func (c *Contract) OnCleanup(ia ICPAction) error {
	if c.Store == nil {
		return ErrNotOpen{}
	}
	_, err := c.verifyAgainstBlock(ia)
	return err
}

// Cleanup removes receipts in [start, end] whose packets have reached a
// terminal status, enforcing contiguity: every seq in the range must have
// a record, or the whole call fails with no partial deletion.
func (c *Contract) Cleanup(start, end uint64) error {
	if c.Store == nil {
		return ErrNotOpen{}
	}
	if start > end {
		return ErrNonContiguousRange{Missing: start}
	}
	for seq := start; seq <= end; seq++ {
		r, ok := c.receipts[seq]
		if !ok {
			return ErrNonContiguousRange{Missing: seq}
		}
		p, ok := c.packets[r.PacketSeq]
		if !ok || p.Status == PacketUnreceipted {
			return ErrNotTerminal{Seq: r.PacketSeq}
		}
	}
	for seq := start; seq <= end; seq++ {
		r := c.receipts[seq]
		delete(c.packets, r.PacketSeq)
		delete(c.receipts, seq)
	}
	return nil
}

// GenProof re-emits the Merkle leaf digests for an old packet's and/or
// receipt's local block, so the relay can recover from a lost proof
// without asking the host chain to replay history. It is read-only with
// respect to business state. Either argument may be 0 to skip that half.
func (c *Contract) GenProof(packetSeq, receiptSeq uint64) (packetDigests, receiptDigests [][]byte, err error) {
	if c.Store == nil {
		return nil, nil, ErrNotOpen{}
	}
	if packetSeq != 0 {
		p, ok := c.packets[packetSeq]
		if !ok {
			return nil, nil, ErrPacketNotFound{Seq: packetSeq}
		}
		packetDigests, err = c.localIndex.ActionDigests(p.LocalBlockNum)
		if err != nil {
			return nil, nil, err
		}
	}
	if receiptSeq != 0 {
		r, ok := c.receipts[receiptSeq]
		if !ok {
			return nil, nil, ErrReceiptNotFound{Seq: receiptSeq}
		}
		receiptDigests, err = c.localIndex.ActionDigests(r.LocalBlockNum)
		if err != nil {
			return nil, nil, err
		}
	}
	return packetDigests, receiptDigests, nil
}

// Prune is an admin-guarded mass delete of receipts in
// [recv_start, recv_end] under Cleanup's rules (contiguous range, terminal
// packets only). Neither Prune nor Cleanup compares the range or the
// receipts' blocks against lib. It then enforces max_blocks by shrinking
// the Fork Store towards that count, evicting non-canonical states
// oldest-first.
func (c *Contract) Prune(caller string, recvStart, recvEnd uint64) error {
	if err := c.requireOwner(caller, "prune"); err != nil {
		return err
	}
	if c.Store == nil {
		return ErrNotOpen{}
	}
	if err := c.Cleanup(recvStart, recvEnd); err != nil {
		return err
	}
	c.Store.PruneToMax(c.blocksLimit.MaxBlocks)
	return nil
}

// NextOutgoingPacketSeq reports the seq that the next SendAction call must
// use.
func (c *Contract) NextOutgoingPacketSeq() uint64 {
	return c.peer.LastOutgoingPacketSeq + 1
}

// Peer returns a copy of the current peer cursor record.
func (c *Contract) Peer() PeerRecord { return c.peer }

// MeterState returns a copy of the current rate meter.
func (c *Contract) MeterState() Meter { return c.meter }

// Packets returns the live packet table sorted by seq, for inspection and
// testing.
func (c *Contract) Packets() []*Packet {
	out := make([]*Packet, 0, len(c.packets))
	for _, p := range c.packets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
