// Package wire is the off-chain relay's message codec: a fixed
// tag-per-variant framing over the tagged union exchanged between two
// relay sessions, patterned after the peer_set/p2p wire conventions
// elsewhere in this tree but using go-amino for the struct encoding within
// each frame instead of hand-rolled field layout.
package wire

import (
	"encoding/binary"
	"fmt"

	amino "github.com/tendermint/go-amino"
)

var cdc = amino.NewCodec()

// Tag identifies the variant carried by a frame. Values are frozen once
// assigned; a new variant is always appended, never inserted.
type Tag uint32

const (
	TagHello Tag = iota
	TagPing
	TagPong
	TagChannelSeed
	TagBlockHeaderWithMerklePath
	TagICPActions
)

// Hello is exchanged immediately after the transport comes up, on both
// sides, before any other message is accepted.
type Hello struct {
	ID           string
	ChainID      string
	Contract     string
	PeerContract string
}

// Ping carries a liveness probe plus the sender's local head, letting the
// peer trigger catch-up without a separate message.
type Ping struct {
	Sent uint64
	Code [32]byte
	Head uint64
}

// Pong must echo Code from the Ping it answers; a mismatch closes the
// session.
type Pong struct {
	EchoedCode [32]byte
}

// ChannelSeed carries the encoded BlockHeaderState used to bootstrap a
// fresh channel via openchannel.
type ChannelSeed struct {
	Seed []byte
}

// BlockHeaderWithMerklePath carries one or more new peer-chain headers
// plus whatever Merkle path data accompanies them, destined for addblocks.
type BlockHeaderWithMerklePath struct {
	Headers     [][]byte
	MerklePaths [][]byte
}

// ICPActions carries one block's worth of cross-chain actions: the block
// header, the peer-chain actions that produced them, their receipts, and
// the digests needed to verify each against the block's action-Merkle-root.
// PeerActions, Actions, ActionReceipts, and ActionDigests are required to
// be equal-length and index-aligned; EqualLength checks this explicitly
// since the wire format itself cannot enforce it.
type ICPActions struct {
	BlockHeader    []byte
	PeerActions    [][]byte
	Actions        [][]byte
	ActionReceipts [][]byte
	ActionDigests  [][][]byte
}

// EqualLength reports whether the index-aligned arrays actually agree on
// length, per the alignment assumption documented on ICPActions.
func (m ICPActions) EqualLength() bool {
	n := len(m.PeerActions)
	return len(m.Actions) == n && len(m.ActionReceipts) == n && len(m.ActionDigests) == n
}

// ErrBadPayload is returned by Decode for an unrecognized tag or malformed
// payload; the session closes with this as its reason.
type ErrBadPayload struct {
	Tag Tag
	Err error
}

func (e ErrBadPayload) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad payload (tag %d): %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("bad payload: unknown tag %d", e.Tag)
}

// Encode frames msg as tag || amino(msg), in the fixed order the tags above
// were assigned.
func Encode(msg interface{}) ([]byte, error) {
	tag, err := tagOf(msg)
	if err != nil {
		return nil, err
	}

	payload, err := cdc.MarshalBinaryBare(msg)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(tag))
	copy(frame[4:], payload)
	return frame, nil
}

func tagOf(msg interface{}) (Tag, error) {
	switch msg.(type) {
	case *Hello, Hello:
		return TagHello, nil
	case *Ping, Ping:
		return TagPing, nil
	case *Pong, Pong:
		return TagPong, nil
	case *ChannelSeed, ChannelSeed:
		return TagChannelSeed, nil
	case *BlockHeaderWithMerklePath, BlockHeaderWithMerklePath:
		return TagBlockHeaderWithMerklePath, nil
	case *ICPActions, ICPActions:
		return TagICPActions, nil
	default:
		return 0, fmt.Errorf("wire: unencodable message type %T", msg)
	}
}

// Decode reads tag || payload from frame and returns the decoded variant
// as one of the concrete *Hello/*Ping/... types, or ErrBadPayload if the
// tag is unrecognized or the payload doesn't parse.
func Decode(frame []byte) (interface{}, error) {
	if len(frame) < 4 {
		return nil, ErrBadPayload{Err: fmt.Errorf("frame too short: %d bytes", len(frame))}
	}
	tag := Tag(binary.BigEndian.Uint32(frame[:4]))
	payload := frame[4:]

	var out interface{}
	switch tag {
	case TagHello:
		out = new(Hello)
	case TagPing:
		out = new(Ping)
	case TagPong:
		out = new(Pong)
	case TagChannelSeed:
		out = new(ChannelSeed)
	case TagBlockHeaderWithMerklePath:
		out = new(BlockHeaderWithMerklePath)
	case TagICPActions:
		out = new(ICPActions)
	default:
		return nil, ErrBadPayload{Tag: tag}
	}

	if err := cdc.UnmarshalBinaryBare(payload, out); err != nil {
		return nil, ErrBadPayload{Tag: tag, Err: err}
	}
	return out, nil
}
