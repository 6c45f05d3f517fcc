// Package wire implements the tag+length+payload value codec, the composite
// descriptors built from it, the turn signals, and the length-prefixed framing
// used on every client connection.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tag is the one-byte discriminator identifying a value's wire type.
type Tag byte

// Value tags.
const (
	TagInt    Tag = 0x01
	TagBool   Tag = 0x02
	TagString Tag = 0x03
	TagStruct Tag = 0x04
	TagEnum   Tag = 0x05
)

// HeaderSize is the tag byte plus the length byte.
const HeaderSize = 2

// MaxPayload is the largest payload a single length byte can describe.
const MaxPayload = 255

const (
	intSize  = 4
	boolSize = 1
	enumSize = 1
)

var (
	// ErrEmptyString is returned when encoding a string with no characters.
	ErrEmptyString = errors.New("wire: empty string")
	// ErrTooLong is returned when a payload would not fit the length byte.
	ErrTooLong = errors.New("wire: payload too long")
	// ErrTypeMismatch is returned when a buffer's tag is not the requested type.
	ErrTypeMismatch = errors.New("wire: type mismatch")
	// ErrShortBuffer is returned when a buffer ends before its declared payload.
	ErrShortBuffer = errors.New("wire: short buffer")
	// ErrBadLength is returned when a declared length is impossible for the tag.
	ErrBadLength = errors.New("wire: bad length")
	// ErrUnknownTag is returned when a tag byte names no known type.
	ErrUnknownTag = errors.New("wire: unknown tag")
)

// String returns the tag's type name.
func (t Tag) String() string {
	switch t {
	case TagInt:
		return "int"
	case TagBool:
		return "bool"
	case TagString:
		return "string"
	case TagStruct:
		return "struct"
	case TagEnum:
		return "enum"
	default:
		return fmt.Sprintf("tag(0x%02x)", byte(t))
	}
}

// Value is one of Int, Bool, String, Enum or Struct.
type Value interface {
	Tag() Tag
}

// Int is a 32-bit signed integer carried as 4 big-endian bytes.
type Int int32

// Bool is carried as a single 0/1 byte.
type Bool bool

// String is carried as its bytes plus a NUL terminator.
type String string

// Enum is a single unsigned byte.
type Enum uint8

// Struct is an ordered list of field values wrapped in one envelope.
type Struct []Value

func (Int) Tag() Tag    { return TagInt }
func (Bool) Tag() Tag   { return TagBool }
func (String) Tag() Tag { return TagString }
func (Enum) Tag() Tag   { return TagEnum }
func (Struct) Tag() Tag { return TagStruct }

// EncodeInt encodes i as [TagInt, 4, b3, b2, b1, b0].
func EncodeInt(i int32) []byte {
	buf := make([]byte, HeaderSize+intSize)
	buf[0] = byte(TagInt)
	buf[1] = intSize
	binary.BigEndian.PutUint32(buf[HeaderSize:], uint32(i))
	return buf
}

// EncodeBool encodes b as [TagBool, 1, 0|1].
func EncodeBool(b bool) []byte {
	v := byte(0)
	if b {
		v = 1
	}
	return []byte{byte(TagBool), boolSize, v}
}

// EncodeEnum encodes e as [TagEnum, 1, e].
func EncodeEnum(e uint8) []byte {
	return []byte{byte(TagEnum), enumSize, e}
}

// EncodeString encodes s as [TagString, len(s)+1, s..., 0].
//
// Precondition: s must be non-empty and at most MaxPayload-1 bytes.
// Postcondition: Returns the encoding, or ErrEmptyString / ErrTooLong.
func EncodeString(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrEmptyString
	}
	n := len(s) + 1
	if n > MaxPayload {
		return nil, fmt.Errorf("string of %d bytes: %w", len(s), ErrTooLong)
	}
	buf := make([]byte, HeaderSize+n)
	buf[0] = byte(TagString)
	buf[1] = byte(n)
	copy(buf[HeaderSize:], s)
	return buf, nil
}

// EncodeStruct wraps already-encoded fields in a Struct envelope whose length
// is the sum of the field encodings.
func EncodeStruct(fields ...[]byte) ([]byte, error) {
	total := 0
	for _, f := range fields {
		total += len(f)
	}
	if total > MaxPayload {
		return nil, fmt.Errorf("struct of %d bytes: %w", total, ErrTooLong)
	}
	buf := make([]byte, 0, HeaderSize+total)
	buf = append(buf, byte(TagStruct), byte(total))
	for _, f := range fields {
		buf = append(buf, f...)
	}
	return buf, nil
}

// Encode encodes any Value.
func Encode(v Value) ([]byte, error) {
	switch x := v.(type) {
	case Int:
		return EncodeInt(int32(x)), nil
	case Bool:
		return EncodeBool(bool(x)), nil
	case Enum:
		return EncodeEnum(uint8(x)), nil
	case String:
		return EncodeString(string(x))
	case Struct:
		fields := make([][]byte, 0, len(x))
		for i, f := range x {
			b, err := Encode(f)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			fields = append(fields, b)
		}
		return EncodeStruct(fields...)
	case nil:
		return nil, fmt.Errorf("nil value: %w", ErrUnknownTag)
	default:
		return nil, fmt.Errorf("%T: %w", v, ErrUnknownTag)
	}
}

// header validates the tag and declared length of the value at the start of
// buf and returns its payload and total encoded size.
func header(want Tag, buf []byte) ([]byte, int, error) {
	if len(buf) < HeaderSize {
		return nil, 0, ErrShortBuffer
	}
	if got := Tag(buf[0]); got != want {
		return nil, 0, fmt.Errorf("want %s, got %s: %w", want, got, ErrTypeMismatch)
	}
	n := int(buf[1])
	if len(buf) < HeaderSize+n {
		return nil, 0, fmt.Errorf("%s declares %d bytes, %d present: %w", want, n, len(buf)-HeaderSize, ErrShortBuffer)
	}
	return buf[HeaderSize : HeaderSize+n], HeaderSize + n, nil
}

// DecodeInt decodes an Int at the start of buf.
func DecodeInt(buf []byte) (int32, error) {
	v, _, err := decodeInt(buf)
	return v, err
}

func decodeInt(buf []byte) (int32, int, error) {
	p, n, err := header(TagInt, buf)
	if err != nil {
		return 0, 0, err
	}
	if len(p) != intSize {
		return 0, 0, fmt.Errorf("int length %d: %w", len(p), ErrBadLength)
	}
	return int32(binary.BigEndian.Uint32(p)), n, nil
}

// DecodeBool decodes a Bool at the start of buf.
func DecodeBool(buf []byte) (bool, error) {
	v, _, err := decodeBool(buf)
	return v, err
}

func decodeBool(buf []byte) (bool, int, error) {
	p, n, err := header(TagBool, buf)
	if err != nil {
		return false, 0, err
	}
	if len(p) != boolSize {
		return false, 0, fmt.Errorf("bool length %d: %w", len(p), ErrBadLength)
	}
	return p[0] != 0, n, nil
}

// DecodeEnum decodes an Enum at the start of buf.
func DecodeEnum(buf []byte) (uint8, error) {
	v, _, err := decodeEnum(buf)
	return v, err
}

func decodeEnum(buf []byte) (uint8, int, error) {
	p, n, err := header(TagEnum, buf)
	if err != nil {
		return 0, 0, err
	}
	if len(p) != enumSize {
		return 0, 0, fmt.Errorf("enum length %d: %w", len(p), ErrBadLength)
	}
	return p[0], n, nil
}

// DecodeString decodes a String at the start of buf. The terminator is
// stripped; a string whose last payload byte is not NUL is rejected.
func DecodeString(buf []byte) (string, error) {
	v, _, err := decodeString(buf)
	return v, err
}

func decodeString(buf []byte) (string, int, error) {
	p, n, err := header(TagString, buf)
	if err != nil {
		return "", 0, err
	}
	if len(p) < 2 || p[len(p)-1] != 0 {
		return "", 0, fmt.Errorf("string length %d: %w", len(p), ErrBadLength)
	}
	return string(p[:len(p)-1]), n, nil
}

// DecodeStruct decodes a Struct at the start of buf, decoding each field by
// its own tag.
func DecodeStruct(buf []byte) (Struct, error) {
	v, _, err := decodeStruct(buf)
	return v, err
}

func decodeStruct(buf []byte) (Struct, int, error) {
	p, n, err := header(TagStruct, buf)
	if err != nil {
		return nil, 0, err
	}
	var fields Struct
	for off := 0; off < len(p); {
		v, used, err := decodeAny(p[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("field %d: %w", len(fields), err)
		}
		fields = append(fields, v)
		off += used
	}
	return fields, n, nil
}

func decodeAny(buf []byte) (Value, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrShortBuffer
	}
	switch Tag(buf[0]) {
	case TagInt:
		v, n, err := decodeInt(buf)
		return Int(v), n, err
	case TagBool:
		v, n, err := decodeBool(buf)
		return Bool(v), n, err
	case TagEnum:
		v, n, err := decodeEnum(buf)
		return Enum(v), n, err
	case TagString:
		v, n, err := decodeString(buf)
		return String(v), n, err
	case TagStruct:
		return decodeStruct(buf)
	default:
		return nil, 0, fmt.Errorf("0x%02x: %w", buf[0], ErrUnknownTag)
	}
}

// Decode decodes the value at the start of buf, requiring it to carry the
// hinted tag.
//
// Postcondition: Returns the decoded value, or an error wrapping
// ErrTypeMismatch when buf's tag differs from hint.
func Decode(hint Tag, buf []byte) (Value, error) {
	if len(buf) == 0 {
		return nil, ErrShortBuffer
	}
	if got := Tag(buf[0]); got != hint {
		return nil, fmt.Errorf("want %s, got %s: %w", hint, got, ErrTypeMismatch)
	}
	v, _, err := decodeAny(buf)
	if err != nil {
		return nil, err
	}
	return v, nil
}
