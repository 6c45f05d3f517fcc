// Package session manages the lifecycle of two-player game sessions: creation,
// listing, joining, signal relay and teardown.
package session

import (
	"time"

	"github.com/TobyBridle/xo-online/internal/game/turn"
)

// Session is one game between a host and, once joined, a guest.
// Sessions refer to players by client id only.
type Session struct {
	ID int32
	// Players holds the client ids of the host and guest; zero marks an
	// empty seat.
	Players   [2]int32
	Valid     bool
	Full      bool
	Machine   *turn.Machine
	CreatedAt time.Time
}

// Seat returns the slot held by clientID.
func (s *Session) Seat(clientID int32) (turn.Slot, bool) {
	switch clientID {
	case 0:
		return 0, false
	case s.Players[turn.Host]:
		return turn.Host, true
	case s.Players[turn.Guest]:
		return turn.Guest, true
	default:
		return 0, false
	}
}

// PlayerCount returns the number of occupied seats.
func (s *Session) PlayerCount() int {
	n := 0
	for _, id := range s.Players {
		if id != 0 {
			n++
		}
	}
	return n
}

// Open reports whether the session can be joined.
func (s *Session) Open() bool {
	return s.Valid && !s.Full
}
