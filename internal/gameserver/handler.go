package gameserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobyBridle/xo-online/internal/game/resources"
	"github.com/TobyBridle/xo-online/internal/observability"
	"github.com/TobyBridle/xo-online/internal/registry"
	"github.com/TobyBridle/xo-online/internal/transport"
	"github.com/TobyBridle/xo-online/internal/wire"
)

var errOutboxDrained = errors.New("outbox closed")

// Handler admits connections into the registry and pumps their frames to and
// from the dispatcher. It implements transport.ConnHandler.
type Handler struct {
	clients    *registry.Registry
	dispatcher *Dispatcher
	text       *resources.Strings
	logger     *zap.Logger
	outboxSize int
}

// NewHandler creates a Handler.
//
// Precondition: clients, dispatcher, text and logger must be non-nil.
func NewHandler(clients *registry.Registry, dispatcher *Dispatcher, text *resources.Strings, logger *zap.Logger, outboxSize int) *Handler {
	return &Handler{
		clients:    clients,
		dispatcher: dispatcher,
		text:       text,
		logger:     logger,
		outboxSize: outboxSize,
	}
}

// HandleConn serves one client until it disconnects or ctx is cancelled.
//
// Postcondition: A client that was allocated an id has been submitted to the
// dispatcher as disconnected exactly once. A client refused for capacity is
// sent the full reply and never allocated.
func (h *Handler) HandleConn(ctx context.Context, conn *transport.Conn) error {
	traceID := uuid.NewString()
	logger := observability.ConnLogger(h.logger, traceID, conn.RemoteAddr())

	c := registry.NewClient(traceID, conn.RemoteAddr(), h.outboxSize)
	id, err := h.clients.Allocate(c)
	if errors.Is(err, registry.ErrFull) {
		logger.Warn("registry full, refusing client", zap.Int("connected", h.clients.Len()))
		if werr := conn.WriteFrame(wire.EncodeInt(wire.ReplyFull)); werr != nil {
			return fmt.Errorf("sending full reply: %w", werr)
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("allocating client: %w", err)
	}
	logger = logger.With(zap.Int32("client_id", id))
	logger.Info("client connected")

	// Queued ahead of the writer, so the id is always the first frame.
	_ = c.SendInt(id)
	_ = c.SendText(h.text.NamePrompt)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		return h.write(gctx, conn, c)
	})
	g.Go(func() error {
		return h.read(gctx, conn, c, logger)
	})
	runErr := g.Wait()

	reason := disconnectReason(runErr)
	if ctx.Err() != nil {
		reason = "server shutdown"
	}
	if err := h.dispatcher.Submit(DisconnectEvent{Client: c, Reason: reason}); err != nil {
		// The dispatcher has gone; clean up directly.
		_ = h.clients.Remove(id)
		c.Outbox.Close()
	}
	logger.Info("client connection closed", zap.String("reason", reason))

	if errors.Is(runErr, io.EOF) {
		return nil
	}
	return runErr
}

// read turns inbound frames into dispatcher events. Malformed messages are
// dropped; an oversized frame ends the connection since the stream cannot be
// resynchronised.
func (h *Handler) read(ctx context.Context, conn *transport.Conn, c *registry.Client, logger *zap.Logger) error {
	for {
		payload, err := conn.ReadFrame()
		if errors.Is(err, wire.ErrEmptyFrame) {
			continue
		}
		if err != nil {
			if errors.Is(err, wire.ErrFrameTooLarge) {
				logger.Warn("oversized frame", zap.Error(err))
			}
			return err
		}
		msg, err := wire.ParseMessage(payload)
		if err != nil {
			logger.Debug("dropping malformed message", zap.Error(err))
			continue
		}
		if err := h.dispatcher.Submit(MessageEvent{Client: c, Message: msg}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// write drains the client's outbox onto the connection.
func (h *Handler) write(ctx context.Context, conn *transport.Conn, c *registry.Client) error {
	frames := c.Outbox.Frames()
	for {
		select {
		case payload, ok := <-frames:
			if !ok {
				return errOutboxDrained
			}
			if err := conn.WriteFrame(payload); err != nil {
				return fmt.Errorf("writing frame: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func disconnectReason(err error) string {
	var ne net.Error
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return "peer closed"
	case errors.Is(err, wire.ErrFrameTooLarge):
		return "protocol error"
	case errors.Is(err, errOutboxDrained):
		return "slow client"
	case errors.Is(err, ErrDispatcherStopped), errors.Is(err, context.Canceled):
		return "server shutdown"
	case errors.As(err, &ne) && ne.Timeout():
		return "idle timeout"
	default:
		return "connection error"
	}
}
