package gameserver

import (
	"github.com/TobyBridle/xo-online/internal/registry"
	"github.com/TobyBridle/xo-online/internal/wire"
)

// Event is an input to the dispatcher loop.
type Event interface {
	isEvent()
}

// MessageEvent carries one classified message read from a client.
type MessageEvent struct {
	Client  *registry.Client
	Message wire.Message
}

// DisconnectEvent is submitted exactly once per allocated client, after its
// reader and writer have both stopped.
type DisconnectEvent struct {
	Client *registry.Client
	Reason string
}

func (MessageEvent) isEvent()    {}
func (DisconnectEvent) isEvent() {}
