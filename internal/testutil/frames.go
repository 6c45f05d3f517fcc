// Package testutil provides helpers for loopback integration tests.
package testutil

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/TobyBridle/xo-online/internal/wire"
)

// FrameClient is a minimal game client speaking the framed wire protocol.
type FrameClient struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T
}

// NewFrameClient dials addr and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected FrameClient or fails the test.
func NewFrameClient(t *testing.T, addr string) *FrameClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("frame client connected to %s [%s]", addr, time.Since(start))
	return &FrameClient{conn: conn, reader: bufio.NewReader(conn), t: t}
}

// Send writes one raw frame payload.
func (c *FrameClient) Send(payload []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := wire.WriteFrame(c.conn, payload); err != nil {
		c.t.Fatalf("sending frame: %v", err)
	}
}

// SendInt sends an Int message.
func (c *FrameClient) SendInt(v int32) {
	c.t.Helper()
	c.Send(wire.EncodeInt(v))
}

// SendString sends a String message.
func (c *FrameClient) SendString(s string) {
	c.t.Helper()
	buf, err := wire.EncodeString(s)
	if err != nil {
		c.t.Fatalf("encoding %q: %v", s, err)
	}
	c.Send(buf)
}

// SendSignal sends an in-game signal.
func (c *FrameClient) SendSignal(sig wire.Signal) {
	c.t.Helper()
	buf, err := wire.EncodeSignal(sig)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", sig.Kind, err)
	}
	c.Send(buf)
}

// Next reads the next frame payload or fails the test after timeout.
func (c *FrameClient) Next(timeout time.Duration) []byte {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	payload, err := wire.ReadFrame(c.reader, 1<<16)
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	return payload
}

// ReadInt reads frames until an Int arrives and returns it.
func (c *FrameClient) ReadInt(timeout time.Duration) int32 {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		payload := c.Next(time.Until(deadline))
		if wire.Tag(payload[0]) == wire.TagInt {
			v, err := wire.DecodeInt(payload)
			if err != nil {
				c.t.Fatalf("decoding int: %v", err)
			}
			return v
		}
	}
}

// ReadUntilText reads frames until a String containing substr arrives. It
// returns every String line read, in order.
func (c *FrameClient) ReadUntilText(substr string, timeout time.Duration) []string {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	var lines []string
	for {
		payload := c.Next(time.Until(deadline))
		if wire.Tag(payload[0]) != wire.TagString {
			continue
		}
		s, err := wire.DecodeString(payload)
		if err != nil {
			c.t.Fatalf("decoding string: %v", err)
		}
		lines = append(lines, s)
		if strings.Contains(s, substr) {
			return lines
		}
	}
}

// ReadSignal reads frames until a signal arrives and returns it.
func (c *FrameClient) ReadSignal(timeout time.Duration) wire.Signal {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		payload := c.Next(time.Until(deadline))
		if !wire.IsSignal(payload[0]) {
			continue
		}
		sig, err := wire.DecodeSignal(payload)
		if err != nil {
			c.t.Fatalf("decoding signal: %v", err)
		}
		return sig
	}
}

// ExpectClosed waits for the server to close the connection.
func (c *FrameClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, err := wire.ReadFrame(c.reader, 1<<16)
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.t.Fatalf("connection still open after %s", timeout)
		}
		return
	}
}

// Close closes the underlying connection.
func (c *FrameClient) Close() {
	c.conn.Close()
}
