package registry

import (
	"errors"
	"sync"
)

var (
	// ErrOutboxClosed is returned by Push after Close.
	ErrOutboxClosed = errors.New("outbox closed")
	// ErrOutboxFull is returned by Push when the buffer has no room.
	ErrOutboxFull = errors.New("outbox buffer full")
)

// Outbox queues encoded payloads for a connection's writer goroutine.
type Outbox struct {
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox holding up to size payloads.
//
// Postcondition: size <= 0 falls back to 64.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{frames: make(chan []byte, size)}
}

// Push enqueues payload without blocking.
//
// Precondition: payload must be non-empty.
// Postcondition: payload is queued, or ErrOutboxClosed / ErrOutboxFull is
// returned.
func (o *Outbox) Push(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.frames <- payload:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Frames returns the channel drained by the writer. It is closed by Close.
func (o *Outbox) Frames() <-chan []byte {
	return o.frames
}

// Close closes the frames channel. Safe to call more than once.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
}
