package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icp-relay/icp-relay/libs/log"
	"github.com/icp-relay/icp-relay/wire"
)

// fakeConn is an in-memory Conn: writes to one side are readable from the
// other via buffered channels, so two Sessions can be wired directly
// together without a real websocket.
type fakeConn struct {
	out    chan []byte
	in     chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConnPair() (*fakeConn, *fakeConn) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	a := &fakeConn{out: ab, in: ba, closed: make(chan struct{})}
	b := &fakeConn{out: ba, in: ab, closed: make(chan struct{})}
	return a, b
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return 2, data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) UnderlyingConn() net.Conn          { return nil }

// fakeHandler records every callback it receives.
type fakeHandler struct {
	mtx      sync.Mutex
	hellos   []*wire.Hello
	messages []interface{}
	closed   []CloseReason
	onHello  func(*Session, *wire.Hello) error
}

func (h *fakeHandler) OnHello(s *Session, hello *wire.Hello) error {
	h.mtx.Lock()
	h.hellos = append(h.hellos, hello)
	h.mtx.Unlock()
	if h.onHello != nil {
		return h.onHello(s, hello)
	}
	return nil
}

func (h *fakeHandler) OnMessage(s *Session, msg interface{}) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.messages = append(h.messages, msg)
}

func (h *fakeHandler) OnClose(s *Session, reason CloseReason) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.closed = append(h.closed, reason)
}

func (h *fakeHandler) helloCount() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.hellos)
}

func (h *fakeHandler) closeReasons() []CloseReason {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	out := make([]CloseReason, len(h.closed))
	copy(out, h.closed)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestHandshake_CompletesToOperational(t *testing.T) {
	connA, connB := newFakeConnPair()
	handlerA := &fakeHandler{}
	handlerB := &fakeHandler{}

	a := New("node-a", connA, handlerA, log.NewNopLogger(), func() uint64 { return 1 })
	a.ChainID = "chain-1"
	b := New("node-b", connB, handlerB, log.NewNopLogger(), func() uint64 { return 2 })
	b.ChainID = "chain-1"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.OnStart(ctx))
	require.NoError(t, b.OnStart(ctx))
	defer a.OnStop()
	defer b.OnStop()

	waitFor(t, func() bool { return a.State() == StateOperational && b.State() == StateOperational })
	assert.Equal(t, "node-b", a.PeerID)
	assert.Equal(t, "node-a", b.PeerID)
	assert.Equal(t, 1, handlerA.helloCount())
	assert.Equal(t, 1, handlerB.helloCount())
}

func TestHandshake_ChainIDMismatchCloses(t *testing.T) {
	connA, connB := newFakeConnPair()
	handlerA := &fakeHandler{}
	handlerB := &fakeHandler{}

	a := New("node-a", connA, handlerA, log.NewNopLogger(), nil)
	a.ChainID = "chain-1"
	b := New("node-b", connB, handlerB, log.NewNopLogger(), nil)
	b.ChainID = "chain-2"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.OnStart(ctx))
	require.NoError(t, b.OnStart(ctx))
	defer a.OnStop()
	defer b.OnStop()

	waitFor(t, func() bool { return len(handlerA.closeReasons()) > 0 })
	assert.Contains(t, handlerA.closeReasons(), CloseChainIDMismatch)
}

func TestHandshake_SelfConnectCloses(t *testing.T) {
	connA, connB := newFakeConnPair()
	handlerA := &fakeHandler{}
	handlerB := &fakeHandler{}

	a := New("same-id", connA, handlerA, log.NewNopLogger(), nil)
	b := New("same-id", connB, handlerB, log.NewNopLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.OnStart(ctx))
	require.NoError(t, b.OnStart(ctx))
	defer a.OnStop()
	defer b.OnStop()

	waitFor(t, func() bool { return len(handlerA.closeReasons()) > 0 })
	assert.Contains(t, handlerA.closeReasons(), CloseSelfConnect)
}

func TestApplicationMessage_ForwardedAfterOperational(t *testing.T) {
	connA, connB := newFakeConnPair()
	handlerA := &fakeHandler{}
	handlerB := &fakeHandler{}

	a := New("node-a", connA, handlerA, log.NewNopLogger(), nil)
	b := New("node-b", connB, handlerB, log.NewNopLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.OnStart(ctx))
	require.NoError(t, b.OnStart(ctx))
	defer a.OnStop()
	defer b.OnStop()

	waitFor(t, func() bool { return a.State() == StateOperational })
	require.NoError(t, a.Enqueue(&wire.ChannelSeed{Seed: []byte("seed-bytes")}))

	waitFor(t, func() bool { return len(handlerB.messages) > 0 })
	seed, ok := handlerB.messages[0].(*wire.ChannelSeed)
	require.True(t, ok)
	assert.Equal(t, []byte("seed-bytes"), seed.Seed)
}

func TestPingPong_Roundtrips(t *testing.T) {
	orig := pingInterval
	pingInterval = 10 * time.Millisecond
	defer func() { pingInterval = orig }()

	connA, connB := newFakeConnPair()
	handlerA := &fakeHandler{}
	handlerB := &fakeHandler{}

	a := New("node-a", connA, handlerA, log.NewNopLogger(), func() uint64 { return 7 })
	b := New("node-b", connB, handlerB, log.NewNopLogger(), func() uint64 { return 9 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.OnStart(ctx))
	require.NoError(t, b.OnStart(ctx))
	defer a.OnStop()
	defer b.OnStop()

	waitFor(t, func() bool { return a.State() == StateOperational })

	// Let several ping/pong round trips elapse on their own cadence; a
	// mismatch or transport error would close the session.
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, handlerA.closeReasons())
	assert.Empty(t, handlerB.closeReasons())
}

func TestOnHelloError_ClosesWithBadPayload(t *testing.T) {
	connA, connB := newFakeConnPair()
	handlerA := &fakeHandler{}
	handlerB := &fakeHandler{onHello: func(*Session, *wire.Hello) error {
		return assert.AnError
	}}

	a := New("node-a", connA, handlerA, log.NewNopLogger(), nil)
	b := New("node-b", connB, handlerB, log.NewNopLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.OnStart(ctx))
	require.NoError(t, b.OnStart(ctx))
	defer a.OnStop()
	defer b.OnStop()

	waitFor(t, func() bool { return len(handlerB.closeReasons()) > 0 })
	assert.Contains(t, handlerB.closeReasons(), CloseBadPayload)
}
