// Package chat implements the chat protocol adapter: the connection state
// machine (login handshake, command loop, teardown), the command handlers,
// and the shutdown fan-out to connected peers and queued transfers.
package chat

import (
	"context"
	"net"

	"github.com/marmos91/relaychat/internal/logger"
	"github.com/marmos91/relaychat/pkg/adapter"
	"github.com/marmos91/relaychat/pkg/chat"
	"github.com/marmos91/relaychat/pkg/metrics"
	"github.com/marmos91/relaychat/pkg/wire"
)

// Config holds the chat adapter configuration.
type Config struct {
	adapter.BaseConfig
}

// Adapter is the chat protocol server. It owns the client registry, the room
// registry, and the file transfer queue; connection workers reach shared
// state only through those registries.
type Adapter struct {
	*adapter.Base

	clients *chat.ClientRegistry
	rooms   *chat.RoomRegistry
	queue   *chat.TransferQueue
	metrics metrics.ChatMetrics
}

// NewAdapter creates a chat adapter. A nil ChatMetrics disables collection.
func NewAdapter(config Config, m metrics.ChatMetrics) *Adapter {
	a := &Adapter{
		Base:    adapter.NewBase(config.BaseConfig, "Chat"),
		clients: chat.NewClientRegistry(),
		rooms:   chat.NewRoomRegistry(),
		queue:   chat.NewTransferQueue(),
		metrics: m,
	}
	if m != nil {
		a.Base.Metrics = m
	}
	a.Base.OnShutdown = a.notifyShutdown
	return a
}

// Serve starts the accept loop and blocks until shutdown.
func (a *Adapter) Serve(ctx context.Context) error {
	return a.ServeWithFactory(ctx, a)
}

// NewConnection creates the handler for one accepted connection.
func (a *Adapter) NewConnection(conn net.Conn) adapter.ConnectionHandler {
	return newConnection(conn, a)
}

// ClientCount returns the number of logged-in clients.
func (a *Adapter) ClientCount() int { return a.clients.Count() }

// RoomCount returns the number of active rooms.
func (a *Adapter) RoomCount() int { return a.rooms.Count() }

// notifyShutdown runs once when shutdown begins, before the listener closes:
// every session receives the shutdown notice, then both ends of every queued
// transfer are told theirs was cancelled and the queue is drained.
func (a *Adapter) notifyShutdown() {
	notified := 0
	a.clients.Iterate(func(s *chat.Session) {
		if !s.Active() {
			return
		}
		if err := s.Send(wire.MsgServerShutdown); err == nil {
			notified++
		}
	})
	logger.Log(logger.TagServer, "Shutdown notice sent", "clients", notified)

	drained := a.queue.DrainAndAbort(func(t *chat.Ticket) {
		if t.SenderSession != nil {
			_ = t.SenderSession.Send(wire.TransferAbortSender(t.Filename, t.Receiver))
		}
		if t.ReceiverSession != nil {
			_ = t.ReceiverSession.Send(wire.TransferAbortReceiver(t.Filename, t.Sender))
		}
	})
	if drained > 0 {
		logger.Log(logger.TagFile, "Aborted queued transfers", "count", drained)
	}
	if a.metrics != nil {
		a.metrics.SetQueueDepth(0)
	}
}

func (a *Adapter) recordRoomCount() {
	if a.metrics != nil {
		a.metrics.SetRoomCount(a.rooms.Count())
	}
}

func (a *Adapter) recordQueueDepth() {
	if a.metrics != nil {
		a.metrics.SetQueueDepth(a.queue.Count())
	}
}
