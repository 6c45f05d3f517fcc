// Package turn implements the turn synchronization state machine that lets
// the two players of a session agree on whose move is authoritative.
//
// The server does not judge the game itself. It only enforces who may speak
// when, relays each signal to the other player, and records confirmed moves.
package turn

import (
	"errors"
	"fmt"

	"github.com/TobyBridle/xo-online/internal/wire"
)

// State is the phase of a session's turn protocol.
type State uint8

const (
	AwaitingSecondPlayer State = iota
	MoverTurn
	WaiterTurn
	EndPendingConfirm
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingSecondPlayer:
		return "awaiting_second_player"
	case MoverTurn:
		return "mover_turn"
	case WaiterTurn:
		return "waiter_turn"
	case EndPendingConfirm:
		return "end_pending_confirm"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Slot identifies a player seat within a session.
type Slot uint8

const (
	Host Slot = iota
	Guest
)

// Other returns the opposing seat.
func (s Slot) Other() Slot {
	return 1 - s
}

func (s Slot) String() string {
	if s == Host {
		return "host"
	}
	return "guest"
}

// Cell is the content of one board square.
type Cell uint8

const (
	Empty Cell = iota
	Cross
	Nought
)

// mark returns the cell a seat places: the host plays crosses.
func (s Slot) mark() Cell {
	if s == Host {
		return Cross
	}
	return Nought
}

var (
	// ErrOutOfTurn is returned for a signal the sender may not send now.
	ErrOutOfTurn = errors.New("signal out of turn")
	// ErrNotPlaying is returned when the session has no active game.
	ErrNotPlaying = errors.New("game not in progress")
)

// Outcome tells the caller what to do with an applied signal.
type Outcome struct {
	// Relay, when set, is forwarded to the sender's opponent.
	Relay *wire.Signal
	// Reply, when set, is sent back to the sender.
	Reply *wire.Signal
	// TurnFlipped is true when a confirmed move passed the turn.
	TurnFlipped bool
	// Unbind is true when both players agreed the game is over.
	Unbind bool
}

// Machine holds one session's turn state and board.
// It is not safe for concurrent use; the owning dispatcher serializes access.
type Machine struct {
	state   State
	turn    Slot
	pending int32
	// moved is the seat whose move was confirmed last; valid when hasMoved.
	moved    Slot
	hasMoved bool
	claimant Slot
	board    [wire.BoardCells]Cell
}

// New returns a Machine waiting for its second player. The host moves first.
func New() *Machine {
	return &Machine{state: AwaitingSecondPlayer, turn: Host}
}

// Start begins play once the guest has joined.
//
// Postcondition: State is MoverTurn with the host to move, or ErrNotPlaying
// is returned when the machine is not awaiting a second player.
func (m *Machine) Start() error {
	if m.state != AwaitingSecondPlayer {
		return fmt.Errorf("start in %s: %w", m.state, ErrNotPlaying)
	}
	m.state = MoverTurn
	m.turn = Host
	return nil
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Turn returns the seat that currently holds the move.
func (m *Machine) Turn() Slot { return m.turn }

// Board returns a copy of the board.
func (m *Machine) Board() [wire.BoardCells]Cell { return m.board }

// Descriptor returns the board as seen by seat.
func (m *Machine) Descriptor(seat Slot) wire.BoardDescriptor {
	var d wire.BoardDescriptor
	for i, c := range m.board {
		d.Cells[i] = uint8(c)
	}
	d.YourTurn = m.turn == seat
	return d
}

// Terminate ends the game from any state.
func (m *Machine) Terminate() {
	m.state = Terminated
}

// Apply feeds a signal sent by seat from into the machine.
//
// A Check from the wrong seat, at the wrong time or off the board is not an
// error: the Outcome carries a Confirm(false) reply to the sender instead.
//
// Postcondition: On success the returned Outcome describes the relay, reply
// and teardown to perform. On error the state is unchanged.
func (m *Machine) Apply(from Slot, sig wire.Signal) (Outcome, error) {
	if m.state == AwaitingSecondPlayer && sig.Kind == wire.SignalCheck {
		return rejectCheck(), nil
	}
	if m.state == AwaitingSecondPlayer || m.state == Terminated {
		return Outcome{}, fmt.Errorf("%s in %s: %w", sig.Kind, m.state, ErrNotPlaying)
	}

	switch sig.Kind {
	case wire.SignalCheck:
		return m.check(from, sig), nil
	case wire.SignalConfirm:
		return m.confirm(from, sig)
	case wire.SignalWin, wire.SignalDraw:
		return m.claim(from, sig)
	case wire.SignalConfirmEnd:
		return m.confirmEnd(from, sig)
	default:
		return Outcome{}, fmt.Errorf("%s from %s: %w", sig.Kind, from, ErrOutOfTurn)
	}
}

// check forwards the mover's Check to the waiter, who judges whether the
// square is free. Only the position range and the turn are enforced here.
func (m *Machine) check(from Slot, sig wire.Signal) Outcome {
	if m.state != MoverTurn || from != m.turn || !onBoard(sig.Position) {
		return rejectCheck()
	}
	m.pending = sig.Position
	m.state = WaiterTurn
	return Outcome{Relay: &sig}
}

func rejectCheck() Outcome {
	reject := wire.Confirm(false)
	return Outcome{Reply: &reject}
}

func onBoard(pos int32) bool {
	return pos >= 0 && pos < wire.BoardCells
}

func (m *Machine) confirm(from Slot, sig wire.Signal) (Outcome, error) {
	if m.state != WaiterTurn || from != m.turn.Other() {
		return Outcome{}, m.outOfTurn(from, sig)
	}
	out := Outcome{Relay: &sig}
	if sig.Flag {
		m.board[m.pending] = m.turn.mark()
		m.moved, m.hasMoved = m.turn, true
		m.turn = m.turn.Other()
		out.TurnFlipped = true
	}
	m.state = MoverTurn
	return out, nil
}

func (m *Machine) claim(from Slot, sig wire.Signal) (Outcome, error) {
	justMoved := m.hasMoved && from == m.moved
	if m.state != MoverTurn || (from != m.turn && !justMoved) {
		return Outcome{}, m.outOfTurn(from, sig)
	}
	m.claimant = from
	m.state = EndPendingConfirm
	return Outcome{Relay: &sig}, nil
}

func (m *Machine) confirmEnd(from Slot, sig wire.Signal) (Outcome, error) {
	if m.state != EndPendingConfirm || from == m.claimant {
		return Outcome{}, m.outOfTurn(from, sig)
	}
	out := Outcome{Relay: &sig}
	if sig.Flag {
		m.state = Terminated
		out.Unbind = true
	} else {
		m.state = MoverTurn
	}
	return out, nil
}

func (m *Machine) outOfTurn(from Slot, sig wire.Signal) error {
	return fmt.Errorf("%s from %s in %s: %w", sig.Kind, from, m.state, ErrOutOfTurn)
}
