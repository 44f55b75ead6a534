package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader is shared by every accepted connection; a Session only ever
// exchanges binary frames, so buffer sizes matter more than origin
// checking, which this relay leaves permissive since PeerAddress/dialing
// is the actual access control (a relay only dials or accepts from the one
// configured peer).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Listener accepts incoming peer sessions on one HTTP server, upgrading
// every connection to a websocket and handing it to accept. It is the
// accept-side counterpart to Dial, grounded on rpc/lib/client/ws_client.go's
// dialer but mirrored for inbound connections, the way a relay that did
// not initiate the link still needs to speak the same framing.
type Listener struct {
	srv *http.Server
	ln  net.Listener
}

// Addr returns the bound listen address, useful for logging the actual
// port chosen when the configured address used ":0".
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Listen starts accepting connections on addr (a "tcp://host:port" URL)
// and calls accept for each upgraded connection. It returns once the
// listener socket is bound; accept runs the session lifecycle itself and
// is expected not to return until the session ends.
func Listen(addr string, accept func(Conn)) (*Listener, error) {
	hostport, err := stripScheme(addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accept(conn)
	})

	srv := &http.Server{Addr: hostport, Handler: mux}
	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		return nil, err
	}
	go func() { _ = srv.Serve(ln) }()
	return &Listener{srv: srv, ln: ln}, nil
}

// Close shuts the listener down.
func (l *Listener) Close(ctx context.Context) error {
	return l.srv.Shutdown(ctx)
}

// Dial connects to a peer relay at addr (a "tcp://host:port" URL) and
// returns the upgraded websocket connection, ready to be passed to
// session.New.
func Dial(addr string) (Conn, error) {
	hostport, err := stripScheme(addr)
	if err != nil {
		return nil, err
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.Dial("ws://"+hostport+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("session: dial %s: %w", addr, err)
	}
	return conn, nil
}

func stripScheme(addr string) (string, error) {
	for _, scheme := range []string{"tcp://", "ws://"} {
		if strings.HasPrefix(addr, scheme) {
			return strings.TrimPrefix(addr, scheme), nil
		}
	}
	return "", fmt.Errorf("session: address %q must start with tcp:// or ws://", addr)
}
