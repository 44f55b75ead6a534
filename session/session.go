// Package session is the relay's off-chain duplex link: one gorilla
// websocket connection to a peer's relay, framed with the wire package's
// tagged-union codec. It is grounded on two sources that, read together,
// describe the same design from two different angles: the original
// session.cpp's strand-confined single-writer state machine (hello
// exchange, ping/pong priority, on-message dispatch), and
// rpc/lib/client/ws_client.go's Go idiom for the same shape — a single
// readRoutine and a single writeRoutine goroutine per connection,
// communicating through channels instead of a boost::asio strand, with
// BaseService managing the lifecycle.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/icp-relay/icp-relay/libs/log"
	"github.com/icp-relay/icp-relay/libs/service"
	"github.com/icp-relay/icp-relay/wire"
)

// State is the per-session lifecycle state machine: new -> (accept|connect)
// -> handshaking -> hello_exchange -> operational -> closed.
type State int

const (
	StateNew State = iota
	StateHandshaking
	StateHelloExchange
	StateOperational
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHandshaking:
		return "handshaking"
	case StateHelloExchange:
		return "hello_exchange"
	case StateOperational:
		return "operational"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// pingInterval is a var, not a const, so tests can shrink it rather than
// wait out the production cadence.
var pingInterval = 3 * time.Second

const (
	sendBufSize    = 1 << 20 // 1 MiB, absorbs block-header bursts per §5
	recvBufSize    = 1 << 20
	writeQueueSize = 64
)

// CloseReason names why a session ended, mirroring §7's error-disposition
// table (bad_payload, chain_id_mismatch, self_connect, transport_error,
// ping_mismatch) so the coordinator can log and decide on reconnect policy.
type CloseReason string

const (
	CloseBadPayload        CloseReason = "bad_payload"
	CloseChainIDMismatch   CloseReason = "chain_id_mismatch"
	CloseSelfConnect       CloseReason = "self_connect"
	CloseTransportError    CloseReason = "transport_error"
	ClosePingMismatch      CloseReason = "ping_mismatch"
	CloseRedundantPeer     CloseReason = "redundant_peer"
	CloseLocal             CloseReason = "local_close"
)

// Handler is the coordinator-side policy callback a Session invokes for
// every decoded message and for its own termination. It stands in for the
// "post to the application event loop" step in session.cpp: instead of an
// asio post, we hand the message to this callback from the Session's own
// goroutine, and it is the Handler's job not to block.
type Handler interface {
	OnHello(s *Session, h *wire.Hello) error
	OnMessage(s *Session, msg interface{})
	OnClose(s *Session, reason CloseReason)
}

// Conn is the subset of *websocket.Conn a Session needs; satisfied
// directly by gorilla/websocket and by a fake in tests.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
	SetReadDeadline(time.Time) error
	SetPongHandler(func(string) error)
	UnderlyingConn() net.Conn
}

// Session owns one peer connection. Its buffers and state are only ever
// touched from readLoop and writePump, which together play the role
// session.cpp's strand played: neither goroutine's state is visible to the
// other except through the channels below, so there is nothing to lock.
//
// writePump is the sole writer on the connection: readLoop never calls
// conn.WriteMessage itself. A received ping or pong is handed to writePump
// over pingRecv/pongRecv, and lastPingCode/pingAwaiting/lastPingAt are
// touched only inside writePump, confining that state to one goroutine.
type Session struct {
	service.BaseService

	ID       string
	PeerID   string
	ChainID  string
	Contract string

	// ExpectPeerContract, if set, is sent as Hello.PeerContract so the far
	// side can confirm it is the contract this session believes it is
	// talking to before admitting the session.
	ExpectPeerContract string

	conn    Conn
	handler Handler
	log     log.Logger

	localHead func() uint64

	sendQueue chan []byte
	pingRecv  chan [32]byte
	pongRecv  chan *wire.Pong
	quit      chan struct{}
	closeOnce sync.Once

	stateMtx sync.RWMutex
	state    State

	// Touched only by writePump.
	lastPingCode [32]byte
	pingAwaiting bool
	lastPingAt   time.Time

	sentHello bool
	recvHello bool
}

// New wraps conn as a fresh Session. localHead reports this side's current
// block number for outbound pings.
func New(id string, conn Conn, handler Handler, logger log.Logger, localHead func() uint64) *Session {
	if conn != nil {
		if tc, ok := conn.UnderlyingConn().(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
			_ = tc.SetReadBuffer(recvBufSize)
			_ = tc.SetWriteBuffer(sendBufSize)
		}
	}
	s := &Session{
		ID:        id,
		conn:      conn,
		handler:   handler,
		log:       logger,
		localHead: localHead,
		sendQueue: make(chan []byte, writeQueueSize),
		pingRecv:  make(chan [32]byte),
		pongRecv:  make(chan *wire.Pong),
		quit:      make(chan struct{}),
		state:     StateNew,
	}
	s.BaseService = *service.NewBaseService(logger, "Session", s)
	return s
}

func (s *Session) setState(st State) {
	s.stateMtx.Lock()
	s.state = st
	s.stateMtx.Unlock()
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.stateMtx.RLock()
	defer s.stateMtx.RUnlock()
	return s.state
}

// OnStart implements service.Implementation: it sends the opening hello
// and launches the read and write goroutines. Per session.cpp's
// do_hello()/do_read() pair, hello goes out before the first read is armed.
func (s *Session) OnStart(ctx context.Context) error {
	s.setState(StateHandshaking)

	if err := s.sendHello(); err != nil {
		return err
	}
	s.setState(StateHelloExchange)

	go s.writePump(ctx)
	go s.readLoop(ctx)
	return nil
}

// OnStop implements service.Implementation.
func (s *Session) OnStop() {
	s.closeOnce.Do(func() {
		close(s.quit)
		_ = s.conn.Close()
	})
}

func (s *Session) sendHello() error {
	s.sentHello = true
	return s.sendNow(&wire.Hello{
		ID:           s.ID,
		ChainID:      s.ChainID,
		Contract:     s.Contract,
		PeerContract: s.ExpectPeerContract,
	})
}

// Enqueue places an application message on the outbound queue. It never
// blocks the caller past writeQueueSize messages of backpressure; a full
// queue indicates the peer is not draining and the session should be
// considered stalled by the coordinator.
func (s *Session) Enqueue(msg interface{}) error {
	frame, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case s.sendQueue <- frame:
		return nil
	case <-s.quit:
		return fmt.Errorf("session %s closed", s.ID)
	}
}

func (s *Session) sendNow(msg interface{}) error {
	frame, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// writePump is the sole writer on the connection, matching the "at most
// one write in flight" invariant from §5 and §8. Priority order per §4.3:
// a pending pong first, then a due ping, then one queued application
// message. Every iteration re-checks pingRecv before falling through to
// the due-ping check and the blocking select, so a pong in flight waits
// behind at most one queued application message (the blocking select
// picks at random among ready cases).
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	pingDue := false

	for {
		select {
		case code := <-s.pingRecv:
			if err := s.sendNow(&wire.Pong{EchoedCode: code}); err != nil {
				s.fail(CloseTransportError)
				return
			}
			continue
		default:
		}

		if pingDue && s.State() == StateOperational && !s.pingAwaiting {
			if err := s.sendPing(); err != nil {
				s.fail(CloseTransportError)
				return
			}
			pingDue = false
			continue
		}

		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case code := <-s.pingRecv:
			if err := s.sendNow(&wire.Pong{EchoedCode: code}); err != nil {
				s.fail(CloseTransportError)
				return
			}
		case pong := <-s.pongRecv:
			if !s.pingAwaiting || pong.EchoedCode != s.lastPingCode {
				s.fail(ClosePingMismatch)
				return
			}
			s.pingAwaiting = false
		case <-ticker.C:
			pingDue = true
		case frame := <-s.sendQueue:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.fail(CloseTransportError)
				return
			}
		}
	}
}

func (s *Session) sendPing() error {
	var code [32]byte
	if _, err := rand.Read(code[:]); err != nil {
		return err
	}
	s.lastPingCode = code
	s.pingAwaiting = true
	s.lastPingAt = time.Now()

	head := uint64(0)
	if s.localHead != nil {
		head = s.localHead()
	}
	return s.sendNow(&wire.Ping{Sent: uint64(s.lastPingAt.Unix()), Code: code, Head: head})
}

// readLoop decodes exactly one message per completed read and dispatches
// it, then loops back to read again. session.cpp re-arms its read via a
// post to the application event loop so the I/O thread never outruns the
// application thread; here that ordering falls out naturally from readLoop
// being a single goroutine that only issues its next ReadMessage after the
// current one's handling returns.
func (s *Session) readLoop(ctx context.Context) {
	defer s.OnStop()

	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(CloseTransportError)
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			s.fail(CloseBadPayload)
			return
		}

		if reason := s.dispatch(msg); reason != "" {
			s.fail(reason)
			return
		}
	}
}

// dispatch handles session-local protocol messages (hello, ping, pong)
// directly and forwards everything else to the coordinator. It returns a
// non-empty CloseReason when the message requires closing the session.
func (s *Session) dispatch(msg interface{}) CloseReason {
	switch m := msg.(type) {
	case *wire.Hello:
		if !s.recvHello && s.State() != StateHelloExchange {
			return CloseBadPayload
		}
		return s.onHello(m)
	case *wire.Ping:
		return s.onPing(m)
	case *wire.Pong:
		return s.onPong(m)
	default:
		if s.State() != StateOperational {
			return CloseBadPayload // first message after hello must be hello
		}
		s.handler.OnMessage(s, msg)
		return ""
	}
}

func (s *Session) onHello(h *wire.Hello) CloseReason {
	if h.ID == s.ID {
		return CloseSelfConnect
	}
	if s.ChainID != "" && h.ChainID != s.ChainID {
		return CloseChainIDMismatch
	}
	s.PeerID = h.ID

	if err := s.handler.OnHello(s, h); err != nil {
		return CloseBadPayload
	}

	s.recvHello = true
	s.setState(StateOperational)
	return ""
}

// onPing hands the received ping off to writePump, which is the only
// goroutine allowed to call conn.WriteMessage; readLoop never writes the
// connection itself.
func (s *Session) onPing(p *wire.Ping) CloseReason {
	select {
	case s.pingRecv <- p.Code:
	case <-s.quit:
	}
	return ""
}

// onPong hands the received pong off to writePump, which owns
// pingAwaiting/lastPingCode and decides whether it matches the
// outstanding ping.
func (s *Session) onPong(p *wire.Pong) CloseReason {
	select {
	case s.pongRecv <- p:
	case <-s.quit:
	}
	return ""
}

func (s *Session) fail(reason CloseReason) {
	s.setState(StateClosed)
	s.handler.OnClose(s, reason)
	s.OnStop()
}

// Close closes the session locally, e.g. on coordinator-driven dedup.
func (s *Session) Close(reason CloseReason) {
	s.setState(StateClosed)
	s.OnStop()
	s.handler.OnClose(s, reason)
}
