package forkstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/icp-relay/icp-relay/crypto"
)

// blockID derives a deterministic fixture BlockID from b the same way a
// real header ID is content-derived, rather than an arbitrary byte pattern.
func blockID(b byte) BlockID {
	var id BlockID
	copy(id[:], crypto.Sha256([]byte{b}))
	return id
}

func seedState() *BlockHeaderState {
	return &BlockHeaderState{
		Header: Header{
			BlockNum:         100,
			ID:               blockID(100),
			ActionMerkleRoot: []byte("seed-root"),
		},
		CurrentSchedule: ProducerSchedule{Version: 1, Digest: []byte("sched-1")},
		LIB:             100,
	}
}

func newSeededStore(t *testing.T) *Store {
	s := NewStore(dbm.NewMemDB())
	require.NoError(t, s.Init(seedState()))
	return s
}

func TestInit_RejectsDouble(t *testing.T) {
	s := newSeededStore(t)
	err := s.Init(seedState())
	assert.IsType(t, ErrAlreadyInitialized{}, err)
}

func TestAddHeader_Unlinkable(t *testing.T) {
	s := newSeededStore(t)
	h := Header{BlockNum: 102, Previous: blockID(101), ID: blockID(102)}
	_, err := s.AddHeader(h)
	assert.IsType(t, ErrUnlinkable{}, err)
}

func TestAddHeader_Duplicate(t *testing.T) {
	s := newSeededStore(t)
	h := Header{BlockNum: 101, Previous: blockID(100), ID: blockID(101)}

	outcome, err := s.AddHeader(h)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)

	outcome, err = s.AddHeader(h)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
}

func TestAddHeader_AdvancesHeadAndLIB(t *testing.T) {
	s := newSeededStore(t)

	for i := uint64(101); i <= 105; i++ {
		h := Header{BlockNum: i, Previous: blockID(byte(i - 1)), ID: blockID(byte(i))}
		_, err := s.AddHeader(h)
		require.NoError(t, err)
	}

	head, err := s.Head()
	require.NoError(t, err)
	assert.EqualValues(t, 105, head.BlockNum)

	// Finality trails head by 3 in this light client's rule.
	assert.EqualValues(t, 102, s.LIB())
}

func TestAddHeader_ForkTieBreak(t *testing.T) {
	s := newSeededStore(t)

	a := Header{BlockNum: 101, Previous: blockID(100), ID: BlockID{0x02}}
	b := Header{BlockNum: 101, Previous: blockID(100), ID: BlockID{0x01}}

	_, err := s.AddHeader(a)
	require.NoError(t, err)
	_, err = s.AddHeader(b)
	require.NoError(t, err)

	head, err := s.Head()
	require.NoError(t, err)
	// Equal (lib, block_num); the smaller id wins deterministically.
	assert.Equal(t, b.ID, head.ID)
}

func TestAddHeaderBatch_RollsBackAtomically(t *testing.T) {
	s := newSeededStore(t)

	good := Header{BlockNum: 101, Previous: blockID(100), ID: blockID(101)}
	bad := Header{BlockNum: 103, Previous: blockID(102), ID: blockID(103)} // skips 102

	_, err := s.AddHeaderBatch([]Header{good, bad})
	require.Error(t, err)

	_, err = s.Find(blockID(101))
	assert.Error(t, err, "partial batch must not leave any header committed")
}

func TestForkPruning(t *testing.T) {
	s := newSeededStore(t)

	forkA := BlockID{0xa1}
	forkB := BlockID{0xb1}
	_, err := s.AddHeader(Header{BlockNum: 101, Previous: blockID(100), ID: forkA})
	require.NoError(t, err)
	_, err = s.AddHeader(Header{BlockNum: 101, Previous: blockID(100), ID: forkB})
	require.NoError(t, err)

	// Extend fork A enough blocks that lib passes 101, so fork B, never
	// extended, falls strictly behind lib.
	prev := forkA
	for i := uint64(102); i <= 105; i++ {
		id := BlockID{byte(i)}
		_, err := s.AddHeader(Header{BlockNum: i, Previous: prev, ID: id})
		require.NoError(t, err)
		prev = id
	}

	_, err = s.Find(forkB)
	assert.Error(t, err, "non-canonical fork below lib must be pruned")

	_, err = s.Find(forkA)
	assert.NoError(t, err, "canonical ancestor of head must survive pruning")
}

func TestPruneToMax(t *testing.T) {
	s := newSeededStore(t)

	prev := blockID(100)
	for i := uint64(101); i <= 103; i++ {
		id := BlockID{byte(i)}
		_, err := s.AddHeader(Header{BlockNum: i, Previous: prev, ID: id})
		require.NoError(t, err)
		prev = id
	}

	// A fork off the seed that never gets extended: non-canonical, but not
	// yet below lib, so pruneBelowLIB leaves it alone on its own.
	forkB := BlockID{0xb1}
	_, err := s.AddHeader(Header{BlockNum: 101, Previous: blockID(100), ID: forkB})
	require.NoError(t, err)

	require.Len(t, s.states, 5)

	pruned := s.PruneToMax(4)
	assert.Equal(t, 1, pruned)
	assert.Len(t, s.states, 4)

	_, err = s.Find(forkB)
	assert.Error(t, err, "lowest-numbered non-canonical branch should be pruned first")
	_, err = s.Find(blockID(103))
	assert.NoError(t, err, "canonical chain must survive PruneToMax")
}

func TestPruneToMax_ZeroIsUnbounded(t *testing.T) {
	s := newSeededStore(t)
	_, err := s.AddHeader(Header{BlockNum: 101, Previous: blockID(100), ID: blockID(101)})
	require.NoError(t, err)

	assert.Equal(t, 0, s.PruneToMax(0))
	assert.Len(t, s.states, 2)
}

func TestIsAncestor(t *testing.T) {
	s := newSeededStore(t)
	_, err := s.AddHeader(Header{BlockNum: 101, Previous: blockID(100), ID: blockID(101)})
	require.NoError(t, err)
	_, err = s.AddHeader(Header{BlockNum: 102, Previous: blockID(101), ID: blockID(102)})
	require.NoError(t, err)

	assert.True(t, s.IsAncestor(blockID(102), blockID(100)))
	assert.False(t, s.IsAncestor(blockID(100), blockID(102)))
}
