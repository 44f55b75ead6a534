package channel

import "github.com/icp-relay/icp-relay/forkstore"

// PacketStatus is the lifecycle state of a Packet.
type PacketStatus int

const (
	PacketUnreceipted PacketStatus = iota
	PacketReceipted
	PacketExpired
)

func (s PacketStatus) String() string {
	switch s {
	case PacketUnreceipted:
		return "unreceipted"
	case PacketReceipted:
		return "receipted"
	case PacketExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ReceiptStatus is the lifecycle state of a Receipt.
type ReceiptStatus int

const (
	ReceiptExecuted ReceiptStatus = iota
	ReceiptExpiredStatus
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptExecuted:
		return "executed"
	case ReceiptExpiredStatus:
		return "expired"
	default:
		return "unknown"
	}
}

// Packet is born on sendaction, consumed by the peer via onpacket, mirrored
// back as a Receipt via onreceipt, and erased by cleanup/prune once both
// sides have advanced past it.
type Packet struct {
	Seq           uint64
	Expiration    uint64 // unix seconds
	SendAction    []byte
	ReceiptAction []byte
	Status        PacketStatus
	// LocalBlockNum is the host block this packet's sendaction committed
	// in, recorded so genproof can re-derive its Merkle path later.
	LocalBlockNum uint64
}

// Receipt is the peer-side acknowledgement of a Packet, recorded on the
// side that executed it and mirrored back to the sender on onreceipt.
type Receipt struct {
	Seq           uint64
	PacketSeq     uint64
	Status        ReceiptStatus
	LocalBlockNum uint64
}

// PeerRecord is the singleton cursor table: the authoritative record of how
// far each direction has progressed. The contract rejects any action that
// would consume a sequence out of order against these cursors.
type PeerRecord struct {
	Peer                   string
	LastOutgoingPacketSeq  uint64
	LastIncomingPacketSeq  uint64
	LastOutgoingReceiptSeq uint64
	LastIncomingReceiptSeq uint64
}

// Meter is the singleton rate-limit table. CurrentPackets must never exceed
// MaxPackets at a transaction boundary.
type Meter struct {
	MaxPackets     uint32
	CurrentPackets uint32
}

// BlocksLimit bounds how many header states the channel's Fork Store is
// allowed to retain below head before older, non-canonical states must be
// pruned by an explicit admin prune call rather than growing unbounded.
type BlocksLimit struct {
	MaxBlocks uint32
}

// ICPAction is the inbound envelope for onpacket/onreceipt/oncleanup: the
// action bytes to execute (or acknowledge), its receipt, the block it was
// committed in, and the leaf digests needed to verify it against that
// block's action-Merkle-root.
type ICPAction struct {
	ActionBytes   []byte
	ReceiptBytes  []byte
	BlockID       forkstore.BlockID
	ActionDigests [][]byte
}
