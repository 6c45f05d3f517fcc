package wire

import "fmt"

// SignalKind is the leading byte of an in-game signal. It occupies the slot a
// plain value would use for its type tag; the rest of the buffer is shaped
// like an Int (Check, Win, Draw) or a Bool (Confirm, ConfirmEnd, Terminated).
type SignalKind byte

// Signal kinds.
const (
	SignalCheck      SignalKind = 0x10
	SignalConfirm    SignalKind = 0x11
	SignalWin        SignalKind = 0x12
	SignalDraw       SignalKind = 0x13
	SignalConfirmEnd SignalKind = 0x14
	SignalTerminated SignalKind = 0x15
)

// String returns the signal's protocol name.
func (k SignalKind) String() string {
	switch k {
	case SignalCheck:
		return "check"
	case SignalConfirm:
		return "confirm"
	case SignalWin:
		return "win"
	case SignalDraw:
		return "draw"
	case SignalConfirmEnd:
		return "confirm_end"
	case SignalTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("signal(0x%02x)", byte(k))
	}
}

// IsSignal reports whether b is a known signal kind byte.
func IsSignal(b byte) bool {
	return b >= byte(SignalCheck) && b <= byte(SignalTerminated)
}

// carrier returns the value tag whose layout the signal borrows.
func (k SignalKind) carrier() Tag {
	switch k {
	case SignalCheck, SignalWin, SignalDraw:
		return TagInt
	default:
		return TagBool
	}
}

// Signal is a decoded in-game signal. Position is meaningful for Int-shaped
// kinds, Flag for Bool-shaped kinds.
type Signal struct {
	Kind     SignalKind
	Position int32
	Flag     bool
}

// Check asks the opponent to validate a move at position.
func Check(position int32) Signal { return Signal{Kind: SignalCheck, Position: position} }

// Confirm answers a Check.
func Confirm(valid bool) Signal { return Signal{Kind: SignalConfirm, Flag: valid} }

// Win claims the game was won with the move at position.
func Win(position int32) Signal { return Signal{Kind: SignalWin, Position: position} }

// Draw claims the game was drawn with the move at position.
func Draw(position int32) Signal { return Signal{Kind: SignalDraw, Position: position} }

// ConfirmEnd answers a Win or Draw claim.
func ConfirmEnd(agree bool) Signal { return Signal{Kind: SignalConfirmEnd, Flag: agree} }

// Terminated tells a player their session is gone.
func Terminated() Signal { return Signal{Kind: SignalTerminated, Flag: true} }

// EncodeSignal encodes s by encoding its carrier value and overwriting the
// leading tag byte with the signal kind.
func EncodeSignal(s Signal) ([]byte, error) {
	if !IsSignal(byte(s.Kind)) {
		return nil, fmt.Errorf("0x%02x: %w", byte(s.Kind), ErrUnknownTag)
	}
	var buf []byte
	if s.Kind.carrier() == TagInt {
		buf = EncodeInt(s.Position)
	} else {
		buf = EncodeBool(s.Flag)
	}
	buf[0] = byte(s.Kind)
	return buf, nil
}

// DecodeSignal decodes a signal buffer. The caller's buffer is not modified:
// the leading byte is restored to the carrier tag on a copy before decoding.
func DecodeSignal(buf []byte) (Signal, error) {
	if len(buf) == 0 {
		return Signal{}, ErrShortBuffer
	}
	kind := SignalKind(buf[0])
	if !IsSignal(buf[0]) {
		return Signal{}, fmt.Errorf("0x%02x is not a signal: %w", buf[0], ErrTypeMismatch)
	}
	retagged := make([]byte, len(buf))
	copy(retagged, buf)
	retagged[0] = byte(kind.carrier())

	s := Signal{Kind: kind}
	var err error
	if kind.carrier() == TagInt {
		s.Position, err = DecodeInt(retagged)
	} else {
		s.Flag, err = DecodeBool(retagged)
	}
	if err != nil {
		return Signal{}, fmt.Errorf("%s signal: %w", kind, err)
	}
	return s, nil
}
