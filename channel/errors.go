package channel

import "fmt"

// ErrAlreadyOpen is returned by openchannel on a channel that already has a
// seeded Fork Store.
type ErrAlreadyOpen struct{}

func (e ErrAlreadyOpen) Error() string { return "channel already open" }

// ErrNotOpen is returned by any action other than openchannel when the
// channel has not been seeded yet.
type ErrNotOpen struct{}

func (e ErrNotOpen) Error() string { return "channel not open" }

// ErrUnauthorized is returned by owner-guarded actions (closechannel,
// prune, setpeer, setmaxpackets, setmaxblocks) called without authority.
type ErrUnauthorized struct{ Action string }

func (e ErrUnauthorized) Error() string { return fmt.Sprintf("unauthorized: %s", e.Action) }

// ErrBadMerkleProof is returned by onpacket/onreceipt when the supplied
// action digests do not reconstruct the referenced block's action-Merkle-root.
type ErrBadMerkleProof struct {
	BlockNum uint64
}

func (e ErrBadMerkleProof) Error() string {
	return fmt.Sprintf("bad merkle proof against block %d", e.BlockNum)
}

// ErrBlockNotFinal is returned when a packet/receipt references a block
// above the local view of the peer's lib.
type ErrBlockNotFinal struct {
	BlockNum, LIB uint64
}

func (e ErrBlockNotFinal) Error() string {
	return fmt.Sprintf("block %d not yet final (lib=%d)", e.BlockNum, e.LIB)
}

// ErrSeqGap is returned when an incoming packet/receipt sequence number is
// not exactly one past the last consumed cursor.
type ErrSeqGap struct {
	Got, Want uint64
}

func (e ErrSeqGap) Error() string {
	return fmt.Sprintf("sequence gap: got %d, want %d", e.Got, e.Want)
}

// ErrSeqDup is returned when an outgoing sendaction's seq does not match
// the next expected outgoing sequence.
type ErrSeqDup struct {
	Got, Want uint64
}

func (e ErrSeqDup) Error() string {
	return fmt.Sprintf("bad seq: got %d, want %d", e.Got, e.Want)
}

// ErrRateLimited is returned by sendaction when current_packets has reached
// max_packets.
type ErrRateLimited struct{ MaxPackets uint32 }

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited: at max of %d unreceipted packets", e.MaxPackets)
}

// ErrPacketNotFound is returned when an action references a packet seq the
// contract has no record of (already cleaned up, or never sent/received).
type ErrPacketNotFound struct{ Seq uint64 }

func (e ErrPacketNotFound) Error() string { return fmt.Sprintf("packet %d not found", e.Seq) }

// ErrReceiptNotFound mirrors ErrPacketNotFound for the receipts table.
type ErrReceiptNotFound struct{ Seq uint64 }

func (e ErrReceiptNotFound) Error() string { return fmt.Sprintf("receipt %d not found", e.Seq) }

// ErrNotTerminal is returned by cleanup when asked to remove a packet whose
// receipt has not reached a terminal state.
type ErrNotTerminal struct{ Seq uint64 }

func (e ErrNotTerminal) Error() string {
	return fmt.Sprintf("packet %d has no terminal receipt yet", e.Seq)
}

// ErrNonContiguousRange is returned by cleanup/prune when [start, end]
// contains a seq with no record, which would otherwise silently skip a gap.
type ErrNonContiguousRange struct{ Missing uint64 }

func (e ErrNonContiguousRange) Error() string {
	return fmt.Sprintf("non-contiguous range: missing seq %d", e.Missing)
}

// ErrNotAligned is returned when an ICPActions-derived batch's parallel
// arrays disagree in length.
type ErrNotAligned struct{}

func (e ErrNotAligned) Error() string { return "peer_actions/actions/action_receipts/action_digests are not index-aligned" }
