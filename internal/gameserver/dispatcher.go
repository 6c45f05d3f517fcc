// Package gameserver connects framed TCP clients to the session manager. One
// dispatcher goroutine owns every client's screen state; each connection
// contributes a reader and a writer goroutine.
package gameserver

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/TobyBridle/xo-online/internal/game/render"
	"github.com/TobyBridle/xo-online/internal/game/resources"
	"github.com/TobyBridle/xo-online/internal/game/session"
	"github.com/TobyBridle/xo-online/internal/registry"
	"github.com/TobyBridle/xo-online/internal/wire"
)

// ErrDispatcherStopped is returned by Submit once the dispatcher has stopped.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Dispatcher serialises every client interaction through a single goroutine.
type Dispatcher struct {
	clients  *registry.Registry
	sessions *session.Manager
	styler   *render.Styler
	text     *resources.Strings
	logger   *zap.Logger

	inbox chan Event
	quit  chan struct{}
	done  chan struct{}

	mu       sync.Mutex
	running  bool
	stopped  bool
	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher whose inbox holds up to backlog events.
//
// Precondition: clients, sessions, styler, text and logger must be non-nil.
func NewDispatcher(clients *registry.Registry, sessions *session.Manager, styler *render.Styler, text *resources.Strings, logger *zap.Logger, backlog int) *Dispatcher {
	if backlog <= 0 {
		backlog = 256
	}
	return &Dispatcher{
		clients:  clients,
		sessions: sessions,
		styler:   styler,
		text:     text,
		logger:   logger,
		inbox:    make(chan Event, backlog),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Submit hands ev to the dispatcher, blocking while the inbox is full.
//
// Postcondition: Returns ErrDispatcherStopped if the dispatcher is stopping.
func (d *Dispatcher) Submit(ev Event) error {
	select {
	case <-d.quit:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.inbox <- ev:
		return nil
	case <-d.quit:
		return ErrDispatcherStopped
	}
}

// Run processes events until Stop is called.
//
// Precondition: Run must be called at most once.
func (d *Dispatcher) Run() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrDispatcherStopped
	}
	d.running = true
	d.mu.Unlock()
	defer close(d.done)

	d.logger.Info("dispatcher running")
	for {
		select {
		case ev := <-d.inbox:
			d.handle(ev)
		case <-d.quit:
			d.logger.Info("dispatcher stopped", zap.Int("pending_events", len(d.inbox)))
			return nil
		}
	}
}

// Stop ends Run and waits for it to return. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		running := d.running
		d.mu.Unlock()

		close(d.quit)
		if running {
			<-d.done
		}
	})
}

func (d *Dispatcher) handle(ev Event) {
	switch ev := ev.(type) {
	case MessageEvent:
		d.handleMessage(ev.Client, ev.Message)
	case DisconnectEvent:
		d.handleDisconnect(ev.Client, ev.Reason)
	}
}

func (d *Dispatcher) handleMessage(c *registry.Client, msg wire.Message) {
	switch c.State {
	case registry.StateSetup:
		d.handleSetup(c, msg)
	case registry.StateHome, registry.StateBrowsing:
		d.handleMenus(c, msg)
	case registry.StateInGame:
		d.handleInGame(c, msg)
	}
}

// handleSetup accepts only a display name. The join token is a blank name.
func (d *Dispatcher) handleSetup(c *registry.Client, msg wire.Message) {
	var raw string
	switch msg := msg.(type) {
	case wire.SetName:
		raw = msg.Name
	case wire.JoinGame:
		raw = wire.JoinToken
	default:
		d.ignore(c, msg)
		return
	}

	name, ok := registry.NormalizeName(raw)
	if !ok {
		d.deliver(c, c.SendInt(wire.ReplyRejected))
		d.deliver(c, c.SendText(d.text.NameRejected))
		return
	}
	c.Name = name
	c.State = registry.StateHome
	d.deliver(c, c.SendInt(wire.ReplyAccepted))
	d.showMenu(c)
	d.logger.Info("client named",
		zap.Int32("client_id", c.ID),
		zap.String("name", name),
	)
}

func (d *Dispatcher) handleMenus(c *registry.Client, msg wire.Message) {
	switch msg.(type) {
	case wire.ListGames:
		c.State = registry.StateBrowsing
		c.LastListVersion = 0
		d.sessions.ShowList(c)
	case wire.CreateGame:
		if _, err := d.sessions.Create(c); err != nil {
			d.logger.Warn("creating session", zap.Int32("client_id", c.ID), zap.Error(err))
		}
	case wire.JoinGame:
		if c.State != registry.StateBrowsing {
			d.ignore(c, msg)
			return
		}
		if _, err := d.sessions.Join(c); err != nil {
			if !errors.Is(err, session.ErrNoOpenSessions) {
				d.logger.Warn("joining session", zap.Int32("client_id", c.ID), zap.Error(err))
			}
			c.LastListVersion = 0
			d.sessions.ShowList(c)
		}
	case wire.GoBack:
		if c.State == registry.StateBrowsing {
			c.State = registry.StateHome
			d.showMenu(c)
		}
	default:
		d.ignore(c, msg)
	}
}

func (d *Dispatcher) handleInGame(c *registry.Client, msg wire.Message) {
	switch msg := msg.(type) {
	case wire.GameSignal:
		if err := d.sessions.Relay(c, msg.Signal); err != nil {
			d.logger.Debug("signal rejected",
				zap.Int32("client_id", c.ID),
				zap.Stringer("kind", msg.Signal.Kind),
				zap.Error(err),
			)
		}
	case wire.GoBack:
		d.sessions.Leave(c, "player left")
	default:
		d.ignore(c, msg)
	}
}

// handleDisconnect tears down c's session while c still holds its id, then
// releases the id. Sessions refer to players by id, so releasing it first
// would let a newly accepted client inherit c's seat during teardown.
func (d *Dispatcher) handleDisconnect(c *registry.Client, reason string) {
	c.Outbox.Close()
	d.sessions.Leave(c, reason)
	if err := d.clients.Remove(c.ID); err != nil {
		d.logger.Debug("removing client", zap.Int32("client_id", c.ID), zap.Error(err))
	}

	d.logger.Info("client disconnected",
		zap.Int32("client_id", c.ID),
		zap.String("reason", reason),
		zap.Int("connected", d.clients.Len()),
		zap.Int("sessions", d.sessions.Count()),
		zap.Int("open_sessions", d.sessions.OpenCount()),
	)
}

func (d *Dispatcher) showMenu(c *registry.Client) {
	d.deliver(c, c.SendText(d.text.ClearScreen))
	d.deliver(c, c.SendText(d.styler.Menu(d.text.MainMenu)...))
}

func (d *Dispatcher) ignore(c *registry.Client, msg wire.Message) {
	d.logger.Debug("ignoring message",
		zap.Int32("client_id", c.ID),
		zap.Stringer("state", c.State),
		zap.String("message", messageName(msg)),
	)
}

func (d *Dispatcher) deliver(c *registry.Client, err error) {
	if err != nil {
		d.logger.Debug("dropping message", zap.Int32("client_id", c.ID), zap.Error(err))
	}
}

func messageName(msg wire.Message) string {
	switch msg.(type) {
	case wire.ListGames:
		return "list_games"
	case wire.CreateGame:
		return "create_game"
	case wire.GoBack:
		return "go_back"
	case wire.JoinGame:
		return "join_game"
	case wire.SetName:
		return "set_name"
	case wire.GameSignal:
		return "game_signal"
	default:
		return "unknown"
	}
}
