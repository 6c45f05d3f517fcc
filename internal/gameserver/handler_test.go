package gameserver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TobyBridle/xo-online/internal/config"
	"github.com/TobyBridle/xo-online/internal/game/render"
	"github.com/TobyBridle/xo-online/internal/game/resources"
	"github.com/TobyBridle/xo-online/internal/game/session"
	"github.com/TobyBridle/xo-online/internal/registry"
	"github.com/TobyBridle/xo-online/internal/testutil"
	"github.com/TobyBridle/xo-online/internal/transport"
	"github.com/TobyBridle/xo-online/internal/wire"
)

const wait = 3 * time.Second

// startServer runs a dispatcher and acceptor on a loopback port and returns
// the address clients should dial.
func startServer(t *testing.T, capacity int) (string, *registry.Registry) {
	t.Helper()
	text, err := resources.Default()
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	styler := render.NewStyler(false)

	reg := registry.New(capacity, 8)
	sessions := session.NewManager(reg, styler, text, logger, time.Minute)
	d := NewDispatcher(reg, sessions, styler, text, logger, 64)
	go func() { _ = d.Run() }()
	t.Cleanup(d.Stop)

	cfg := config.TCPConfig{
		Host:         "127.0.0.1",
		IdleTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxFrameSize: 64,
	}
	acc := transport.NewAcceptor(cfg, NewHandler(reg, d, text, logger, 64), logger)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = acc.Serve(lis) }()
	t.Cleanup(acc.Stop)

	return lis.Addr().String(), reg
}

// login connects and registers name, returning the client and its id.
func login(t *testing.T, addr, name string) (*testutil.FrameClient, int32) {
	t.Helper()
	c := testutil.NewFrameClient(t, addr)
	id := c.ReadInt(wait)
	require.Positive(t, id)
	c.ReadUntilText("Please enter your name:", wait)

	c.SendString(name)
	require.Equal(t, wire.ReplyAccepted, c.ReadInt(wait))
	c.ReadUntilText("Create Game", wait)
	return c, id
}

// startGame has host create a game and guest join it.
func startGame(t *testing.T, addr string) (host, guest *testutil.FrameClient) {
	t.Helper()
	host, _ = login(t, addr, "alice")
	guest, _ = login(t, addr, "bob")

	host.SendInt(wire.RequestCreateGame)
	require.Equal(t, wire.ReplyAccepted, host.ReadInt(wait))
	host.ReadUntilText("Waiting for an opponent", wait)

	guest.SendInt(wire.RequestListGames)
	guest.ReadUntilText("alice's game (1/2)", wait)
	guest.SendString(wire.JoinToken)
	require.Equal(t, wire.ReplyAccepted, guest.ReadInt(wait))
	lines := guest.ReadUntilText("Their turn", wait)
	assert.Contains(t, lines, "You are playing against alice")

	require.Equal(t, wire.ReplyAccepted, host.ReadInt(wait))
	lines = host.ReadUntilText("Your turn", wait)
	assert.Contains(t, lines, "You are playing against bob")
	return host, guest
}

func TestHandler_IDsAscendFromOne(t *testing.T) {
	addr, _ := startServer(t, 4)

	_, first := login(t, addr, "alice")
	_, second := login(t, addr, "bob")
	assert.Equal(t, int32(1), first)
	assert.Equal(t, int32(2), second)
}

func TestHandler_NameRejectedThenAccepted(t *testing.T) {
	addr, _ := startServer(t, 4)
	c := testutil.NewFrameClient(t, addr)
	c.ReadInt(wait)

	c.SendString("   ")
	assert.Equal(t, wire.ReplyRejected, c.ReadInt(wait))
	c.SendString("abcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, wire.ReplyRejected, c.ReadInt(wait))

	c.SendString("  Toby ")
	assert.Equal(t, wire.ReplyAccepted, c.ReadInt(wait))
	c.ReadUntilText("Welcome to XO Online!", wait)
}

func TestHandler_RegistryFull(t *testing.T) {
	addr, _ := startServer(t, 1)
	login(t, addr, "alice")

	c := testutil.NewFrameClient(t, addr)
	assert.Equal(t, wire.ReplyFull, c.ReadInt(wait))
	c.ExpectClosed(wait)
}

func TestHandler_CreateJoinCheckConfirm(t *testing.T) {
	addr, _ := startServer(t, 4)
	host, guest := startGame(t, addr)

	host.SendSignal(wire.Check(4))
	sig := guest.ReadSignal(wait)
	assert.Equal(t, wire.SignalCheck, sig.Kind)
	assert.Equal(t, int32(4), sig.Position)

	guest.SendSignal(wire.Confirm(true))
	sig = host.ReadSignal(wait)
	assert.Equal(t, wire.SignalConfirm, sig.Kind)
	assert.True(t, sig.Flag)

	host.ReadUntilText("Their turn", wait)
	guest.ReadUntilText("Your turn", wait)

	// The host no longer holds the move.
	host.SendSignal(wire.Check(0))
	sig = host.ReadSignal(wait)
	assert.Equal(t, wire.SignalConfirm, sig.Kind)
	assert.False(t, sig.Flag)
}

func TestHandler_DisconnectNotifiesOpponent(t *testing.T) {
	addr, _ := startServer(t, 4)
	host, guest := startGame(t, addr)

	guest.Close()

	sig := host.ReadSignal(wait)
	assert.Equal(t, wire.SignalTerminated, sig.Kind)
	host.ReadUntilText("There are 0 games", wait)

	host.SendString(wire.JoinToken)
	host.ReadUntilText("There are 0 games", wait)
}

func TestHandler_LeaveWithBackKey(t *testing.T) {
	addr, _ := startServer(t, 4)
	host, guest := startGame(t, addr)

	host.Send([]byte{wire.BackKey})
	assert.Equal(t, wire.SignalTerminated, guest.ReadSignal(wait).Kind)
	assert.Equal(t, wire.SignalTerminated, host.ReadSignal(wait).Kind)
	guest.ReadUntilText("There are 0 games", wait)
}

func TestHandler_OversizedFrameCloses(t *testing.T) {
	addr, reg := startServer(t, 4)
	c, _ := login(t, addr, "alice")

	c.Send(make([]byte, 128))
	c.ExpectClosed(wait)

	// The slot is released for the next client.
	require.Eventually(t, func() bool { return reg.Len() == 0 }, wait, 10*time.Millisecond)
	_, id := login(t, addr, "bob")
	assert.Equal(t, int32(1), id)
}

func TestHandler_MalformedMessageIgnored(t *testing.T) {
	addr, _ := startServer(t, 4)
	c, _ := login(t, addr, "alice")

	c.SendInt(99)
	c.Send([]byte{0x7f, 0x00})
	c.SendInt(wire.RequestListGames)
	c.ReadUntilText("There are 0 games", wait)
}
