// Package transport accepts game client TCP connections and exchanges
// length-prefixed frames with them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/TobyBridle/xo-online/internal/config"
)

// acceptBackoff is the pause after a transient Accept failure.
const acceptBackoff = 10 * time.Millisecond

// ConnHandler serves one connected client until it disconnects or ctx is
// cancelled.
type ConnHandler interface {
	HandleConn(ctx context.Context, conn *Conn) error
}

// Acceptor owns the game listener. Each accepted socket is wrapped in a
// framed Conn and served by the ConnHandler on its own goroutine.
type Acceptor struct {
	cfg     config.TCPConfig
	handler ConnHandler
	logger  *zap.Logger

	// base is cancelled by Stop; every connection context derives from it.
	base   context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
	active atomic.Int64

	mu       sync.Mutex
	listener net.Listener
	running  bool
}

// NewAcceptor creates an Acceptor for cfg.
//
// Precondition: handler and logger must be non-nil.
// Postcondition: Nothing is bound until ListenAndServe or Serve is called.
func NewAcceptor(cfg config.TCPConfig, handler ConnHandler, logger *zap.Logger) *Acceptor {
	base, cancel := context.WithCancel(context.Background())
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		base:    base,
		cancel:  cancel,
	}
}

// ListenAndServe binds cfg's address and serves until Stop. Only a bind
// failure is returned; per-connection failures never are.
func (a *Acceptor) ListenAndServe() error {
	lis, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(lis)
}

// Serve accepts on lis until Stop.
//
// Postcondition: Returns nil after Stop.
func (a *Acceptor) Serve(lis net.Listener) error {
	a.mu.Lock()
	if a.base.Err() != nil {
		a.mu.Unlock()
		_ = lis.Close()
		return nil
	}
	a.listener = lis
	a.running = true
	a.mu.Unlock()

	a.logger.Info("game acceptor listening", zap.String("addr", lis.Addr().String()))
	for {
		raw, err := lis.Accept()
		if err != nil {
			if a.base.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			a.logger.Warn("accept failed", zap.Error(err))
			time.Sleep(acceptBackoff)
			continue
		}
		a.conns.Add(1)
		go a.serveConn(raw)
	}
}

func (a *Acceptor) serveConn(raw net.Conn) {
	defer a.conns.Done()
	opened := time.Now()
	n := a.active.Add(1)
	defer a.active.Add(-1)

	if tcp, ok := raw.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	conn := NewConn(raw, a.cfg.IdleTimeout, a.cfg.WriteTimeout, a.cfg.MaxFrameSize)
	defer conn.Close()

	ctx, cancel := context.WithCancel(a.base)
	defer cancel()

	err := a.handler.HandleConn(ctx, conn)
	a.logger.Debug("connection closed",
		zap.String("remote_addr", conn.RemoteAddr()),
		zap.Int64("active_at_open", n),
		zap.Duration("duration", time.Since(opened)),
		zap.Error(err),
	)
}

// Stop closes the listener, cancels every connection context and blocks
// until all handlers have returned. Later calls are no-ops.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	a.cancel()
	wasRunning := a.running
	a.running = false
	if a.listener != nil {
		_ = a.listener.Close()
	}
	a.mu.Unlock()

	a.conns.Wait()
	if wasRunning {
		a.logger.Info("game acceptor stopped")
	}
}

// Active returns the number of connections currently being served.
func (a *Acceptor) Active() int {
	return int(a.active.Load())
}

// Addr returns the bound address, or "" before Serve.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// IsRunning reports whether Serve is accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
