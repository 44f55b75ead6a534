package forkstore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// BlockID is the content hash of a Header. It doubles as the map key of the
// store's arena and as the tie-break value when two forks reach head with
// equal weight: the lexicographically smaller id wins.
type BlockID [32]byte

func (id BlockID) String() string {
	return hex.EncodeToString(id[:])
}

// Less implements the deterministic tie-break ordering used by Head.
func (id BlockID) Less(other BlockID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

func (id BlockID) IsZero() bool {
	return id == BlockID{}
}

// MarshalJSON hex-encodes the id rather than rendering it as a JSON array
// of 32 numbers, matching the hex form String() already uses and keeping a
// seed file human-readable.
func (id BlockID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *BlockID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(id) {
		return fmt.Errorf("forkstore: bad BlockID length %d", len(b))
	}
	copy(id[:], b)
	return nil
}

// Header is the fixed-schema record the peer chain gossips: enough to chain
// blocks together and to verify actions committed within one of them.
type Header struct {
	BlockNum         uint64
	Previous         BlockID
	ID               BlockID
	ScheduleDigest   []byte
	ActionMerkleRoot []byte
	// ActionDigests are the leaf hashes of the block's action tree, kept
	// alongside the header and returned by Store.ActionDigestsAt.
	ActionDigests [][]byte
}

func (h Header) String() string {
	return fmt.Sprintf("Header{num=%d id=%s prev=%s}", h.BlockNum, h.ID, h.Previous)
}

// ProducerSchedule is opaque outside of the light-client rule: the store
// only needs to carry it forward and compare digests, never interpret it.
type ProducerSchedule struct {
	Version uint32
	Digest  []byte
}

// BlockHeaderState is a Header plus the accumulated light-client state the
// fork-choice rule needs: the schedule in force, the schedule about to take
// over, which producers have confirmed this header, and the LIB, which
// applyHeader derives from block height (a block is final three blocks
// later), not from the confirmations.
type BlockHeaderState struct {
	Header

	CurrentSchedule ProducerSchedule
	PendingSchedule *ProducerSchedule
	// Confirmed holds producer ids that have confirmed this header, as a
	// slice rather than a set so the state marshals cleanly through amino.
	Confirmed []string
	LIB       uint64
}

func (s *BlockHeaderState) HasConfirmed(producer string) bool {
	for _, p := range s.Confirmed {
		if p == producer {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy for safe mutation by the fork-choice
// algorithm without aliasing the parent's confirmation slice.
func (s *BlockHeaderState) Clone() *BlockHeaderState {
	c := *s
	c.Confirmed = append([]string(nil), s.Confirmed...)
	if s.PendingSchedule != nil {
		ps := *s.PendingSchedule
		c.PendingSchedule = &ps
	}
	return &c
}

// Outcome reports how add_header handled a given header.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
