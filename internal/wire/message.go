package wire

import (
	"errors"
	"fmt"
)

// Request codes carried as Int payloads from the client.
const (
	RequestListGames  int32 = 1
	RequestCreateGame int32 = 2
)

// Reply codes carried as Int payloads from the server.
const (
	ReplyRejected int32 = 0
	ReplyAccepted int32 = 1
	ReplyFull     int32 = -1
)

// BackKey is the single raw byte a client sends to go back or leave a game.
const BackKey byte = 'b'

// JoinToken is the String payload that asks to join the oldest open game.
const JoinToken = " "

// ErrUnknownRequest is returned for an Int request code with no meaning.
var ErrUnknownRequest = errors.New("wire: unknown request")

// Message is a classified client payload.
type Message interface {
	isMessage()
}

// ListGames asks for the open-games page.
type ListGames struct{}

// CreateGame asks to host a new session.
type CreateGame struct{}

// GoBack leaves the current screen, or the current game.
type GoBack struct{}

// JoinGame asks to join the oldest open session.
type JoinGame struct{}

// SetName carries a display name exactly as sent (untrimmed).
type SetName struct {
	Name string
}

// GameSignal carries an in-game turn signal.
type GameSignal struct {
	Signal Signal
}

func (ListGames) isMessage()  {}
func (CreateGame) isMessage() {}
func (GoBack) isMessage()     {}
func (JoinGame) isMessage()   {}
func (SetName) isMessage()    {}
func (GameSignal) isMessage() {}

// EncodeText encodes a display line. Blank lines are sent as a single space
// since the String codec has no empty form.
func EncodeText(line string) ([]byte, error) {
	if line == "" {
		line = " "
	}
	return EncodeString(line)
}

// ParseMessage classifies one frame payload received from a client.
//
// Postcondition: Returns a Message, or an error wrapping ErrTypeMismatch,
// ErrUnknownRequest or a decode error for malformed payloads.
func ParseMessage(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, ErrShortBuffer
	}
	if len(payload) == 1 && payload[0] == BackKey {
		return GoBack{}, nil
	}
	if IsSignal(payload[0]) {
		s, err := DecodeSignal(payload)
		if err != nil {
			return nil, err
		}
		return GameSignal{Signal: s}, nil
	}
	switch Tag(payload[0]) {
	case TagInt:
		code, err := DecodeInt(payload)
		if err != nil {
			return nil, err
		}
		switch code {
		case RequestListGames:
			return ListGames{}, nil
		case RequestCreateGame:
			return CreateGame{}, nil
		default:
			return nil, fmt.Errorf("request %d: %w", code, ErrUnknownRequest)
		}
	case TagString:
		s, err := DecodeString(payload)
		if err != nil {
			return nil, err
		}
		if s == JoinToken {
			return JoinGame{}, nil
		}
		return SetName{Name: s}, nil
	default:
		return nil, fmt.Errorf("unexpected %s payload: %w", Tag(payload[0]), ErrTypeMismatch)
	}
}
