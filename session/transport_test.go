package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenAndDial_Roundtrip(t *testing.T) {
	accepted := make(chan Conn, 1)
	ln, err := Listen("tcp://127.0.0.1:0", func(c Conn) { accepted <- c })
	require.NoError(t, err)
	defer ln.Close(context.Background())

	client, err := Dial("tcp://" + ln.Addr())
	require.NoError(t, err)
	defer client.Close()

	select {
	case server := <-accepted:
		defer server.Close()
		require.NoError(t, client.WriteMessage(2, []byte("hello")))
		_, data, err := server.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, "hello", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the dialed connection")
	}
}

func TestStripScheme(t *testing.T) {
	hostport, err := stripScheme("tcp://127.0.0.1:8778")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8778", hostport)

	_, err = stripScheme("udp://127.0.0.1:8778")
	require.Error(t, err)
}
