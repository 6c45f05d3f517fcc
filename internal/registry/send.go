package registry

import (
	"encoding"
	"errors"
	"fmt"

	"github.com/TobyBridle/xo-online/internal/wire"
)

// push queues payload for the client. A full outbox means the client is not
// keeping up; the outbox is closed so its writer exits and the connection is
// torn down.
func (c *Client) push(payload []byte) error {
	err := c.Outbox.Push(payload)
	if errors.Is(err, ErrOutboxFull) {
		c.Outbox.Close()
	}
	if err != nil {
		return fmt.Errorf("client %d: %w", c.ID, err)
	}
	return nil
}

// SendInt queues an Int message.
func (c *Client) SendInt(v int32) error {
	return c.push(wire.EncodeInt(v))
}

// SendText queues one String message per line.
//
// Postcondition: Stops at the first line that cannot be encoded or queued.
func (c *Client) SendText(lines ...string) error {
	for _, line := range lines {
		buf, err := wire.EncodeText(line)
		if err != nil {
			return fmt.Errorf("encoding line for client %d: %w", c.ID, err)
		}
		if err := c.push(buf); err != nil {
			return err
		}
	}
	return nil
}

// SendSignal queues an in-game signal.
func (c *Client) SendSignal(sig wire.Signal) error {
	buf, err := wire.EncodeSignal(sig)
	if err != nil {
		return fmt.Errorf("encoding %s for client %d: %w", sig.Kind, c.ID, err)
	}
	return c.push(buf)
}

// SendValue queues a composite value such as a descriptor.
func (c *Client) SendValue(v encoding.BinaryMarshaler) error {
	buf, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding value for client %d: %w", c.ID, err)
	}
	return c.push(buf)
}

// Descriptor returns the wire description of the client.
func (c *Client) Descriptor() *wire.ClientDescriptor {
	return &wire.ClientDescriptor{ID: c.ID, State: uint8(c.State), Name: c.Name}
}
