package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/TobyBridle/xo-online/internal/game/render"
	"github.com/TobyBridle/xo-online/internal/game/resources"
	"github.com/TobyBridle/xo-online/internal/game/turn"
	"github.com/TobyBridle/xo-online/internal/registry"
	"github.com/TobyBridle/xo-online/internal/wire"
)

var (
	// ErrAlreadyInSession is returned when a client bound to a session tries
	// to create or join another.
	ErrAlreadyInSession = errors.New("client already in a session")
	// ErrNoOpenSessions is returned by Join when nothing is waiting for a
	// second player.
	ErrNoOpenSessions = errors.New("no open sessions")
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotInSession is returned when a client outside any session sends a
	// game signal.
	ErrNotInSession = errors.New("client not in a session")
)

// Clients resolves client ids to clients.
type Clients interface {
	Get(id int32) (*registry.Client, error)
	Range(fn func(*registry.Client) bool)
}

// Manager tracks all game sessions.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	clients  Clients
	styler   *render.Styler
	text     *resources.Strings
	logger   *zap.Logger
	sessions map[int32]*Session
	// order lists session ids in creation order.
	order []int32
	// pending is the FIFO of sessions waiting for a guest. Entries that have
	// since filled or been removed are skipped when popped.
	pending []int32
	lastID  int32
	pages   *cache.Cache
}

// NewManager creates an empty Manager. Rendered games pages are memoised for
// pageTTL.
//
// Precondition: clients, styler, text and logger must be non-nil.
func NewManager(clients Clients, styler *render.Styler, text *resources.Strings, logger *zap.Logger, pageTTL time.Duration) *Manager {
	if pageTTL <= 0 {
		pageTTL = time.Minute
	}
	return &Manager{
		clients:  clients,
		styler:   styler,
		text:     text,
		logger:   logger,
		sessions: make(map[int32]*Session),
		pages:    cache.New(pageTTL, 2*pageTTL),
	}
}

// Create opens a new session hosted by host.
//
// Postcondition: The session is valid and not full, the host holds the
// first move and is InGame, and browsing clients see the updated list.
// Returns ErrAlreadyInSession if host is already bound.
func (m *Manager) Create(host *registry.Client) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if host.InSession() {
		return nil, fmt.Errorf("client %d: %w", host.ID, ErrAlreadyInSession)
	}
	m.lastID++
	s := &Session{
		ID:        m.lastID,
		Valid:     true,
		Machine:   turn.New(),
		CreatedAt: time.Now(),
	}
	s.Players[turn.Host] = host.ID
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	m.pending = append(m.pending, s.ID)

	host.SessionID = s.ID
	host.State = registry.StateInGame
	m.deliver(host, host.SendInt(wire.ReplyAccepted))
	m.deliver(host, host.SendText(m.text.ClearScreen))
	m.deliver(host, host.SendText(m.styler.Hint(m.text.Waiting)))

	m.logger.Info("session created",
		zap.Int32("session_id", s.ID),
		zap.Int32("client_id", host.ID),
	)
	m.refreshBrowsers()
	return s, nil
}

// Join seats joiner in the oldest open session.
//
// Postcondition: The session is full, the host holds the move, and both
// players have been sent the acceptance, banner, opponent, board and turn
// line. Returns ErrNoOpenSessions if nothing can be joined.
func (m *Manager) Join(joiner *registry.Client) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if joiner.InSession() {
		return nil, fmt.Errorf("client %d: %w", joiner.ID, ErrAlreadyInSession)
	}
	s, host := m.popPending()
	if s == nil {
		return nil, ErrNoOpenSessions
	}
	if err := s.Machine.Start(); err != nil {
		return nil, fmt.Errorf("session %d: %w", s.ID, err)
	}
	s.Players[turn.Guest] = joiner.ID
	s.Full = true
	joiner.SessionID = s.ID
	joiner.State = registry.StateInGame

	m.announce(s, host, turn.Host, joiner)
	m.announce(s, joiner, turn.Guest, host)

	m.logger.Info("session joined",
		zap.Int32("session_id", s.ID),
		zap.Int32("host_id", host.ID),
		zap.Int32("guest_id", joiner.ID),
	)
	m.refreshBrowsers()
	return s, nil
}

// popPending returns the oldest pending session that is still open and
// whose host is still connected.
func (m *Manager) popPending() (*Session, *registry.Client) {
	for len(m.pending) > 0 {
		id := m.pending[0]
		m.pending = m.pending[1:]
		s, ok := m.sessions[id]
		if !ok || !s.Open() {
			continue
		}
		host, err := m.clients.Get(s.Players[turn.Host])
		if err != nil {
			continue
		}
		return s, host
	}
	return nil, nil
}

func (m *Manager) announce(s *Session, c *registry.Client, seat turn.Slot, opponent *registry.Client) {
	m.deliver(c, c.SendInt(wire.ReplyAccepted))
	m.deliver(c, c.SendText(m.text.ClearScreen))
	m.deliver(c, c.SendText(m.styler.Banner(c.Name, opponent.Name)...))
	m.deliver(c, c.SendValue(opponent.Descriptor()))
	m.sendBoard(s, c, seat)
}

func (m *Manager) sendBoard(s *Session, c *registry.Client, seat turn.Slot) {
	board := s.Machine.Descriptor(seat)
	m.deliver(c, c.SendValue(&board))
	m.deliver(c, c.SendText(m.styler.TurnLine(board.YourTurn)))
}

// List renders the open-games page for c.
//
// Postcondition: changed is false and lines nil when c was already shown the
// current list. Otherwise c's cached version is updated.
func (m *Manager) List(c *registry.Client) (lines []string, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(c)
}

func (m *Manager) list(c *registry.Client) ([]string, bool) {
	p, ok := m.page(c)
	if !ok {
		return nil, false
	}
	return p.lines, true
}

// page is one rendered version of the open-games list.
type page struct {
	lines []string
	games []wire.SessionDescriptor
}

func (m *Manager) page(c *registry.Client) (*page, bool) {
	games := m.openGames()
	version := listVersion(games)
	if c.LastListVersion == version {
		return nil, false
	}
	c.LastListVersion = version

	key := strconv.FormatUint(version, 16)
	if cached, ok := m.pages.Get(key); ok {
		return cached.(*page), true
	}
	p := &page{
		lines: m.styler.GamesPage(games, m.text.ListFooter),
		games: make([]wire.SessionDescriptor, 0, len(games)),
	}
	for _, g := range games {
		p.games = append(p.games, wire.SessionDescriptor{
			ID:       g.ID,
			HostName: g.Host,
			Players:  int32(g.Players),
			Full:     g.Players >= 2,
		})
	}
	m.pages.SetDefault(key, p)
	return p, true
}

// ShowList sends c the games page if it differs from the last one c saw. The
// text lines are followed by one session descriptor per listed game, in the
// same order.
func (m *Manager) ShowList(c *registry.Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.showList(c)
}

func (m *Manager) showList(c *registry.Client) bool {
	p, changed := m.page(c)
	if !changed {
		return false
	}
	m.deliver(c, c.SendText(m.text.ClearScreen))
	m.deliver(c, c.SendText(p.lines...))
	for i := range p.games {
		m.deliver(c, c.SendValue(&p.games[i]))
	}
	return true
}

func (m *Manager) openGames() []render.GameLine {
	games := make([]render.GameLine, 0, len(m.order))
	for _, id := range m.order {
		s := m.sessions[id]
		if !s.Open() {
			continue
		}
		host, err := m.clients.Get(s.Players[turn.Host])
		if err != nil {
			continue
		}
		games = append(games, render.GameLine{ID: s.ID, Host: host.Name, Players: s.PlayerCount()})
	}
	return games
}

// listVersion hashes the visible content of the list. It is never zero, so
// a zero cached version always forces a render.
func listVersion(games []render.GameLine) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, g := range games {
		binary.BigEndian.PutUint32(buf[:4], uint32(g.ID))
		binary.BigEndian.PutUint32(buf[4:], uint32(g.Players))
		_, _ = d.Write(buf[:])
		_, _ = d.WriteString(g.Host)
		_, _ = d.Write([]byte{0})
	}
	v := d.Sum64()
	if v == 0 {
		v = 1
	}
	return v
}

// refreshBrowsers re-sends the list to every browsing client, in ascending
// id order, whose view is stale.
func (m *Manager) refreshBrowsers() {
	m.clients.Range(func(c *registry.Client) bool {
		if c.State == registry.StateBrowsing {
			m.showList(c)
		}
		return true
	})
}

// Unbind tears down a session. Unknown ids are ignored, so it is safe to call
// more than once for the same session.
//
// Postcondition: The session is removed; every seated client that is still
// connected has been sent Terminated, returned to Browsing and shown the list.
func (m *Manager) Unbind(sessionID int32, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unbind(sessionID, reason)
}

func (m *Manager) unbind(sessionID int32, reason string) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	s.Valid = false
	s.Machine.Terminate()
	delete(m.sessions, sessionID)
	if i := slices.Index(m.order, sessionID); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}

	for _, id := range s.Players {
		if id == 0 {
			continue
		}
		c, err := m.clients.Get(id)
		if err != nil {
			continue
		}
		m.deliver(c, c.SendSignal(wire.Terminated()))
		m.deliver(c, c.SendText(m.text.GameOver))
		c.SessionID = 0
		c.State = registry.StateBrowsing
		c.LastListVersion = 0
	}

	m.logger.Info("session unbound",
		zap.Int32("session_id", sessionID),
		zap.String("reason", reason),
		zap.Duration("duration", time.Since(s.CreatedAt)),
	)
	m.refreshBrowsers()
}

// Leave unbinds c's session, if any.
//
// Postcondition: Returns true when a session was torn down.
func (m *Manager) Leave(c *registry.Client, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !c.InSession() {
		return false
	}
	if _, ok := m.sessions[c.SessionID]; !ok {
		c.SessionID = 0
		c.State = registry.StateBrowsing
		return false
	}
	m.unbind(c.SessionID, reason)
	return true
}

// Relay applies a game signal from c to its session's turn machine and
// performs the relay, reply and teardown it decides.
//
// Postcondition: Returns ErrNotInSession, ErrSessionNotFound, or a turn
// error when the signal was not accepted.
func (m *Manager) Relay(c *registry.Client, sig wire.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !c.InSession() {
		return ErrNotInSession
	}
	s, ok := m.sessions[c.SessionID]
	if !ok {
		return fmt.Errorf("session %d: %w", c.SessionID, ErrSessionNotFound)
	}
	seat, ok := s.Seat(c.ID)
	if !ok {
		return fmt.Errorf("client %d in session %d: %w", c.ID, s.ID, ErrNotInSession)
	}

	out, err := s.Machine.Apply(seat, sig)
	if err != nil {
		return fmt.Errorf("session %d: %w", s.ID, err)
	}
	if out.Reply != nil {
		m.deliver(c, c.SendSignal(*out.Reply))
	}
	var other *registry.Client
	if id := s.Players[seat.Other()]; id != 0 {
		other, _ = m.clients.Get(id)
	}
	if out.Relay != nil && other != nil {
		m.deliver(other, other.SendSignal(*out.Relay))
	}
	if out.TurnFlipped {
		m.sendBoard(s, c, seat)
		if other != nil {
			m.sendBoard(s, other, seat.Other())
		}
	}
	if out.Unbind {
		m.unbind(s.ID, "game over")
	}
	return nil
}

// OpenCount returns the number of sessions waiting for a second player.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.sessions {
		if s.Open() {
			n++
		}
	}
	return n
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// deliver logs a failed send. A failed send never aborts the operation that
// caused it; a client whose outbox overflowed is dropped by its writer.
func (m *Manager) deliver(c *registry.Client, err error) {
	if err != nil {
		m.logger.Debug("dropping message",
			zap.Int32("client_id", c.ID),
			zap.Error(err),
		)
	}
}
