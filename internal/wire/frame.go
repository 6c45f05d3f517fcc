package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FramePrefixSize is the size of the big-endian frame length prefix.
const FramePrefixSize = 4

var (
	// ErrFrameTooLarge is returned when a declared frame length exceeds the
	// receiver's limit.
	ErrFrameTooLarge = errors.New("wire: frame too large")
	// ErrEmptyFrame is returned for a zero-length frame.
	ErrEmptyFrame = errors.New("wire: empty frame")
)

// WriteFrame writes the length prefix followed by payload, retrying short
// writes until the whole frame is written or w fails.
//
// Precondition: payload must be non-empty.
// Postcondition: The full frame is written, or a non-nil error is returned.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	frame := make([]byte, FramePrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[FramePrefixSize:], payload)

	for written := 0; written < len(frame); {
		n, err := w.Write(frame[written:])
		written += n
		if err != nil {
			return fmt.Errorf("writing frame (%d/%d bytes): %w", written, len(frame), err)
		}
		if n == 0 {
			return fmt.Errorf("writing frame (%d/%d bytes): %w", written, len(frame), io.ErrShortWrite)
		}
	}
	return nil
}

// ReadFrame reads exactly one frame from r. The payload may arrive split
// across any number of reads.
//
// Precondition: max must be positive.
// Postcondition: Returns the payload; io.EOF when r ends cleanly before a
// prefix; io.ErrUnexpectedEOF when r ends mid-frame; ErrFrameTooLarge when
// the declared length exceeds max.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var prefix [FramePrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n == 0 {
		return nil, ErrEmptyFrame
	}
	if uint64(n) > uint64(max) {
		return nil, fmt.Errorf("frame of %d bytes exceeds %d: %w", n, max, ErrFrameTooLarge)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
