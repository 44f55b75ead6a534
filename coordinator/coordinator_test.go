package coordinator

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/icp-relay/icp-relay/channel"
	"github.com/icp-relay/icp-relay/crypto/merkle"
	"github.com/icp-relay/icp-relay/forkstore"
	"github.com/icp-relay/icp-relay/libs/log"
	"github.com/icp-relay/icp-relay/session"
	"github.com/icp-relay/icp-relay/wire"
)

// noopConn is a Conn that never blocks and never errs, standing in for a
// real websocket when a test only cares about session bookkeeping, not
// wire traffic.
type noopConn struct{}

func (noopConn) ReadMessage() (int, []byte, error)  { return 0, nil, io.EOF }
func (noopConn) WriteMessage(int, []byte) error     { return nil }
func (noopConn) Close() error                       { return nil }
func (noopConn) SetReadDeadline(time.Time) error    { return nil }
func (noopConn) SetPongHandler(func(string) error)  {}
func (noopConn) UnderlyingConn() net.Conn           { return nil }

// noopHandler is a session.Handler that ignores every callback, used for
// sessions a test closes directly without running a live read/write pump.
type noopHandler struct{}

func (noopHandler) OnHello(*session.Session, *wire.Hello) error   { return nil }
func (noopHandler) OnMessage(*session.Session, interface{})      {}
func (noopHandler) OnClose(*session.Session, session.CloseReason) {}

type fakeDispatcher struct{ dispatched [][]byte }

func (d *fakeDispatcher) Dispatch(b []byte) error {
	d.dispatched = append(d.dispatched, b)
	return nil
}

type fakeClock struct{ now, block uint64 }

func (c fakeClock) Now() uint64      { return c.now }
func (c fakeClock) BlockNum() uint64 { return c.block }

type fakeLocalIndex struct{ byBlock map[uint64][][]byte }

func (f fakeLocalIndex) ActionDigests(n uint64) ([][]byte, error) { return f.byBlock[n], nil }

type fakeHeaderProvider struct{ byBlock map[uint64][]byte }

func (f fakeHeaderProvider) HeaderBytes(n uint64) ([]byte, error) { return f.byBlock[n], nil }

func blockID(b byte) forkstore.BlockID {
	var id forkstore.BlockID
	id[0] = b
	return id
}

func newTestCoordinator(t *testing.T) (*Coordinator, *channel.Contract) {
	t.Helper()
	dispatcher := &fakeDispatcher{}
	clock := fakeClock{now: 1000, block: 1}
	localIndex := fakeLocalIndex{byBlock: map[uint64][][]byte{}}
	contract := channel.NewContract("owner", dispatcher, clock, localIndex, dbm.NewMemDB())

	seed := &forkstore.BlockHeaderState{
		Header:          forkstore.Header{BlockNum: 100, ID: blockID(100), ActionMerkleRoot: []byte("seed")},
		CurrentSchedule: forkstore.ProducerSchedule{Version: 1, Digest: []byte("s1")},
		LIB:             100,
	}
	require.NoError(t, contract.OpenChannel(seed))

	headers := fakeHeaderProvider{byBlock: map[uint64][]byte{}}
	c := New("local-id", "chain-1", "local-contract", "peer-contract", contract, func() uint64 { return 42 }, headers, log.NewNopLogger())
	return c, contract
}

func TestOnHello_RejectsContractMismatch(t *testing.T) {
	c, _ := newTestCoordinator(t)
	s := session.New("local-id", nil, nil, log.NewNopLogger(), nil)
	err := c.OnHello(s, &wire.Hello{ID: "peer-a", Contract: "someone-else", PeerContract: "local-contract"})
	assert.Error(t, err)
	assert.Equal(t, 0, c.SessionCount())
}

func TestOnHello_RegistersSession(t *testing.T) {
	c, _ := newTestCoordinator(t)
	s := session.New("local-id", nil, nil, log.NewNopLogger(), nil)
	s.PeerID = "peer-a"
	err := c.OnHello(s, &wire.Hello{ID: "peer-a", Contract: "peer-contract", PeerContract: "local-contract"})
	assert.NoError(t, err)
	assert.Equal(t, 1, c.SessionCount())
}

// TestOnHello_ClosesOlderDuplicatePeer covers scenario 6: when a second
// session completes its hello exchange claiming the same peer id as an
// already-registered session, the coordinator closes the older session
// and keeps the newer one, rather than rejecting the newer arrival.
func TestOnHello_ClosesOlderDuplicatePeer(t *testing.T) {
	c, _ := newTestCoordinator(t)
	s1 := session.New("local-id", noopConn{}, noopHandler{}, log.NewNopLogger(), nil)
	s1.PeerID = "peer-a"
	s2 := session.New("local-id-2", noopConn{}, noopHandler{}, log.NewNopLogger(), nil)
	s2.PeerID = "peer-a"

	require.NoError(t, c.OnHello(s1, &wire.Hello{ID: "peer-a", Contract: "peer-contract", PeerContract: "local-contract"}))
	require.Equal(t, 1, c.SessionCount())

	require.NoError(t, c.OnHello(s2, &wire.Hello{ID: "peer-a", Contract: "peer-contract", PeerContract: "local-contract"}))

	assert.Equal(t, 1, c.SessionCount())
	assert.Equal(t, session.StateClosed, s1.State())
	assert.NotEqual(t, session.StateClosed, s2.State())

	dispositions := c.Dispositions()
	require.NotEmpty(t, dispositions)
	assert.IsType(t, redundantPeer{}, dispositions[len(dispositions)-1].Reason)
}

func TestOnMessage_ChannelSeedAlreadyOpenIsRejected(t *testing.T) {
	c, _ := newTestCoordinator(t)
	s := session.New("local-id", nil, nil, log.NewNopLogger(), nil)
	s.PeerID = "peer-a"

	seedBytes, err := EncodeSeed(forkstore.BlockHeaderState{Header: forkstore.Header{BlockNum: 5, ID: blockID(5)}})
	require.NoError(t, err)
	c.OnMessage(s, &wire.ChannelSeed{Seed: seedBytes})

	dispositions := c.Dispositions()
	require.Len(t, dispositions, 1)
	assert.IsType(t, rejectedMessage{}, dispositions[0].Reason)
}

func TestOnMessage_BlockHeaderWithMerklePath(t *testing.T) {
	c, contract := newTestCoordinator(t)
	s := session.New("local-id", nil, nil, log.NewNopLogger(), nil)
	s.PeerID = "peer-a"

	h := forkstore.Header{BlockNum: 101, Previous: blockID(100), ID: blockID(101)}
	hb, err := EncodeHeader(h)
	require.NoError(t, err)

	c.OnMessage(s, &wire.BlockHeaderWithMerklePath{Headers: [][]byte{hb}})

	head, err := contract.Store.Head()
	require.NoError(t, err)
	assert.EqualValues(t, 101, head.BlockNum)
	assert.Empty(t, c.Dispositions())
}

func TestOnMessage_ICPActionsAppliesPacket(t *testing.T) {
	c, contract := newTestCoordinator(t)
	s := session.New("local-id", nil, nil, log.NewNopLogger(), nil)
	s.PeerID = "peer-a"

	// Chain enough blocks for the proof block to become final under the
	// 3-block trailing finality rule.
	prev := blockID(100)
	var proofHeader forkstore.Header
	digest := []byte("action-digest")
	for i := uint64(101); i <= 105; i++ {
		id := forkstore.BlockID{byte(i)}
		h := forkstore.Header{BlockNum: i, Previous: prev, ID: id}
		if i == 101 {
			h.ActionMerkleRoot = merkle.SimpleHashFromByteSlices([][]byte{digest})
			proofHeader = h
		}
		_, err := contract.AddBlock(h)
		require.NoError(t, err)
		prev = id
	}

	env, err := channel.EncodePacketEnvelope(channel.PacketEnvelope{Seq: 1, Payload: []byte("hello")})
	require.NoError(t, err)
	headerBytes, err := EncodeHeader(proofHeader)
	require.NoError(t, err)

	c.OnMessage(s, &wire.ICPActions{
		BlockHeader:    headerBytes,
		PeerActions:    [][]byte{{}},
		Actions:        [][]byte{env},
		ActionReceipts: [][]byte{{}},
		ActionDigests:  [][][]byte{{digest}},
	})

	assert.Empty(t, c.Dispositions())
	assert.Equal(t, uint64(1), contract.Peer().LastIncomingPacketSeq)
}

func TestPushTransactionAndRelayPacket(t *testing.T) {
	c, contract := newTestCoordinator(t)
	p, err := c.PushTransaction([]byte("payload"), nil, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.Seq)

	c.headers.(fakeHeaderProvider).byBlock[p.LocalBlockNum] = []byte("header-bytes")
	err = c.RelayPacket(p.Seq, p.LocalBlockNum)
	assert.NoError(t, err)
	_ = contract
}
