package telemetry

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderUDP(t *testing.T) {
	sock, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer sock.Close()

	s := NewSender()
	require.NoError(t, s.AddUDPTarget(sock.LocalAddr().String()))
	require.NoError(t, s.Start())
	defer s.Stop()

	line := FormatEstimate(1000, 1.5, -2.5, 3.0, 0.25)
	s.Send(line)

	buf := make([]byte, 256)
	require.NoError(t, sock.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := sock.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, string(line), string(buf[:n]))
}

func TestSenderTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := NewSender()
	s.AddTCPTarget(ln.Addr().String())
	require.NoError(t, s.Start())
	defer s.Stop()

	// The connection is dialed lazily, on the first queued message.
	s.Send([]byte("first\r\n"))
	s.Send([]byte("second\r\n"))

	if deadliner, ok := ln.(*net.TCPListener); ok {
		require.NoError(t, deadliner.SetDeadline(time.Now().Add(2*time.Second)))
	}
	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	total := 0
	for total < len("first\r\nsecond\r\n") {
		n, err := conn.Read(buf[total:])
		require.NoError(t, err)
		total += n
	}
	assert.Equal(t, "first\r\nsecond\r\n", string(buf[:total]))
}

func TestSenderBeforeStartIsNoop(t *testing.T) {
	s := NewSender()
	s.AddTCPTarget("127.0.0.1:1") // never dialed
	s.Send([]byte("dropped"))
	s.Stop()
}
