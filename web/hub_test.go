package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvTimeout(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
		return nil
	}
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := &Client{hub: h, send: make(chan []byte, 4)}
	b := &Client{hub: h, send: make(chan []byte, 4)}
	h.register <- a
	h.register <- b

	h.Broadcast([]byte("one"))
	assert.Equal(t, "one", string(recvTimeout(t, a.send)))
	assert.Equal(t, "one", string(recvTimeout(t, b.send)))

	h.unregister <- a
	h.Broadcast([]byte("two"))
	assert.Equal(t, "two", string(recvTimeout(t, b.send)))

	// Unregistered client's channel is closed.
	_, open := <-a.send
	require.False(t, open)
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	slow := &Client{hub: h, send: make(chan []byte)} // unbuffered, never read
	ok := &Client{hub: h, send: make(chan []byte, 8)}
	h.register <- slow
	h.register <- ok

	h.Broadcast([]byte("x"))
	assert.Equal(t, "x", string(recvTimeout(t, ok.send)))

	// The slow client was evicted and its channel closed.
	select {
	case _, open := <-slow.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("slow client was not dropped")
	}
}
