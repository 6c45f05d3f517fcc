package transport

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobyBridle/xo-online/internal/wire"
)

func pipeConns(t *testing.T, maxFrame int) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server, time.Second, time.Second, maxFrame), client
}

func TestConn_ReadFrame(t *testing.T) {
	conn, peer := pipeConns(t, 64)
	go func() {
		_ = wire.WriteFrame(peer, wire.EncodeInt(7))
	}()

	payload, err := conn.ReadFrame()
	require.NoError(t, err)
	v, err := wire.DecodeInt(payload)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestConn_ReadFrameTooLarge(t *testing.T) {
	conn, peer := pipeConns(t, 4)
	go func() {
		_ = wire.WriteFrame(peer, wire.EncodeInt(7))
	}()
	_, err := conn.ReadFrame()
	assert.ErrorIs(t, err, wire.ErrFrameTooLarge)
}

func TestConn_ReadFrameEOF(t *testing.T) {
	conn, peer := pipeConns(t, 64)
	peer.Close()
	_, err := conn.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_ReadFrameIdleTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewConn(server, 20*time.Millisecond, time.Second, 64)
	defer conn.Close()

	_, err := conn.ReadFrame()
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestConn_ConcurrentWritesDoNotInterleave(t *testing.T) {
	conn, peer := pipeConns(t, 64)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, conn.WriteFrame(wire.EncodeInt(int32(i))))
		}(i)
	}

	seen := map[int32]bool{}
	for i := 0; i < writers; i++ {
		payload, err := wire.ReadFrame(peer, 64)
		require.NoError(t, err)
		v, err := wire.DecodeInt(payload)
		require.NoError(t, err)
		seen[v] = true
	}
	wg.Wait()
	assert.Len(t, seen, writers)
}

func TestConn_CloseIdempotent(t *testing.T) {
	conn, _ := pipeConns(t, 64)
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.NotEmpty(t, conn.RemoteAddr())
}
