package registry

import (
	"fmt"
	"strings"
)

// MaxNameLength is the longest display name accepted after trimming.
const MaxNameLength = 24

// ScreenState is the screen a client is currently looking at.
type ScreenState uint8

const (
	// StateSetup is the initial state; the client has not registered a name.
	StateSetup ScreenState = iota
	// StateHome is the main menu.
	StateHome
	// StateBrowsing is the open-games page.
	StateBrowsing
	// StateInGame means the client is bound to a session.
	StateInGame
)

// String returns the lowercase name of the state.
func (s ScreenState) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateHome:
		return "home"
	case StateBrowsing:
		return "browsing"
	case StateInGame:
		return "in_game"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Client is one connected player.
//
// ID, TraceID, RemoteAddr and Outbox are fixed at creation. The remaining
// fields are owned by the dispatcher goroutine.
type Client struct {
	ID         int32
	TraceID    string
	RemoteAddr string
	Outbox     *Outbox

	Name      string
	State     ScreenState
	SessionID int32
	// LastListVersion is the version of the games page last sent; zero forces
	// the next listing to be sent.
	LastListVersion uint64
}

// NewClient creates a client in StateSetup with an open outbox.
//
// Postcondition: ID is zero until the client is allocated by a Registry.
func NewClient(traceID, remoteAddr string, outboxSize int) *Client {
	return &Client{
		TraceID:    traceID,
		RemoteAddr: remoteAddr,
		Outbox:     NewOutbox(outboxSize),
		State:      StateSetup,
	}
}

// InSession reports whether the client is bound to a game session.
func (c *Client) InSession() bool {
	return c.SessionID != 0
}

// NormalizeName trims surrounding whitespace from a requested name.
//
// Postcondition: Returns the trimmed name and true when it is 1 to
// MaxNameLength characters long; false otherwise.
func NormalizeName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	n := len([]rune(name))
	if n == 0 || n > MaxNameLength {
		return "", false
	}
	return name, true
}
