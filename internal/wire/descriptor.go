package wire

import (
	"encoding"
	"fmt"
)

// BoardCells is the number of cells on a noughts-and-crosses board.
const BoardCells = 9

var (
	_ encoding.BinaryMarshaler   = (*ClientDescriptor)(nil)
	_ encoding.BinaryUnmarshaler = (*ClientDescriptor)(nil)
	_ encoding.BinaryMarshaler   = (*SessionDescriptor)(nil)
	_ encoding.BinaryUnmarshaler = (*SessionDescriptor)(nil)
	_ encoding.BinaryMarshaler   = (*BoardDescriptor)(nil)
	_ encoding.BinaryUnmarshaler = (*BoardDescriptor)(nil)
)

// ClientDescriptor describes a connected client: Struct{Int id, Enum state,
// String name}.
type ClientDescriptor struct {
	ID    int32
	State uint8
	Name  string
}

func (d *ClientDescriptor) MarshalBinary() ([]byte, error) {
	return Encode(Struct{Int(d.ID), Enum(d.State), String(d.Name)})
}

func (d *ClientDescriptor) UnmarshalBinary(data []byte) error {
	fields, err := DecodeStruct(data)
	if err != nil {
		return fmt.Errorf("client descriptor: %w", err)
	}
	if err := expectShape(fields, TagInt, TagEnum, TagString); err != nil {
		return fmt.Errorf("client descriptor: %w", err)
	}
	d.ID = int32(fields[0].(Int))
	d.State = uint8(fields[1].(Enum))
	d.Name = string(fields[2].(String))
	return nil
}

// SessionDescriptor describes an open game: Struct{Int id, String host,
// Int players, Bool full}.
type SessionDescriptor struct {
	ID       int32
	HostName string
	Players  int32
	Full     bool
}

func (d *SessionDescriptor) MarshalBinary() ([]byte, error) {
	return Encode(Struct{Int(d.ID), String(d.HostName), Int(d.Players), Bool(d.Full)})
}

func (d *SessionDescriptor) UnmarshalBinary(data []byte) error {
	fields, err := DecodeStruct(data)
	if err != nil {
		return fmt.Errorf("session descriptor: %w", err)
	}
	if err := expectShape(fields, TagInt, TagString, TagInt, TagBool); err != nil {
		return fmt.Errorf("session descriptor: %w", err)
	}
	d.ID = int32(fields[0].(Int))
	d.HostName = string(fields[1].(String))
	d.Players = int32(fields[2].(Int))
	d.Full = bool(fields[3].(Bool))
	return nil
}

// BoardDescriptor carries the board as seen by one recipient: nine Enum cells
// followed by a Bool that is true when the recipient holds the turn.
type BoardDescriptor struct {
	Cells    [BoardCells]uint8
	YourTurn bool
}

func (d *BoardDescriptor) MarshalBinary() ([]byte, error) {
	fields := make(Struct, 0, BoardCells+1)
	for _, c := range d.Cells {
		fields = append(fields, Enum(c))
	}
	fields = append(fields, Bool(d.YourTurn))
	return Encode(fields)
}

func (d *BoardDescriptor) UnmarshalBinary(data []byte) error {
	fields, err := DecodeStruct(data)
	if err != nil {
		return fmt.Errorf("board descriptor: %w", err)
	}
	shape := make([]Tag, 0, BoardCells+1)
	for i := 0; i < BoardCells; i++ {
		shape = append(shape, TagEnum)
	}
	shape = append(shape, TagBool)
	if err := expectShape(fields, shape...); err != nil {
		return fmt.Errorf("board descriptor: %w", err)
	}
	for i := 0; i < BoardCells; i++ {
		d.Cells[i] = uint8(fields[i].(Enum))
	}
	d.YourTurn = bool(fields[BoardCells].(Bool))
	return nil
}

func expectShape(fields Struct, tags ...Tag) error {
	if len(fields) != len(tags) {
		return fmt.Errorf("%d fields, want %d: %w", len(fields), len(tags), ErrBadLength)
	}
	for i, t := range tags {
		if got := fields[i].Tag(); got != t {
			return fmt.Errorf("field %d is %s, want %s: %w", i, got, t, ErrTypeMismatch)
		}
	}
	return nil
}
