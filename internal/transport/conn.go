package transport

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/TobyBridle/xo-online/internal/wire"
)

// Conn wraps a TCP connection with length-prefixed framing.
// Reads must come from a single goroutine; writes may come from any.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
	once   sync.Once

	idleTimeout  time.Duration
	writeTimeout time.Duration
	maxFrame     int
}

// NewConn wraps a raw TCP connection.
//
// Precondition: raw must be a valid, open network connection; maxFrame must
// be positive.
// Postcondition: Returns a Conn ready for reading and writing frames.
func NewConn(raw net.Conn, idleTimeout, writeTimeout time.Duration, maxFrame int) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
		maxFrame:     maxFrame,
	}
}

// ReadFrame reads the next frame payload.
//
// Postcondition: Returns the payload, or an error (io.EOF when the peer
// closed cleanly, wire.ErrFrameTooLarge for an oversized frame).
func (c *Conn) ReadFrame() ([]byte, error) {
	if c.idleTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.idleTimeout))
	}
	return wire.ReadFrame(c.reader, c.maxFrame)
}

// WriteFrame writes one frame under the write deadline.
//
// Postcondition: The whole frame is written, or an error is returned.
func (c *Conn) WriteFrame(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return wire.WriteFrame(c.raw, payload)
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// Close closes the underlying connection. Later calls are no-ops.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.raw.Close()
	})
	return err
}
