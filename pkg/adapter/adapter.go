// Package adapter provides shared TCP server lifecycle management: listener
// setup, the accept loop, connection tracking, and graceful shutdown with a
// drain timeout. Protocol behavior is injected through ConnectionFactory.
package adapter

import (
	"context"
	"net"
)

// Adapter is a protocol server that can be managed by the start command.
//
// Lifecycle: Serve blocks until the context is cancelled or an unrecoverable
// error occurs; Stop may be called concurrently with Serve and must be
// idempotent.
type Adapter interface {
	// Serve starts the server and blocks until shutdown. When the context is
	// cancelled it must stop accepting connections, drain active ones within
	// the configured timeout, and return nil on a graceful shutdown.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. Safe to call multiple times and
	// concurrently with Serve.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging.
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	Port() int
}

// ConnectionHandler serves one accepted connection. Serve blocks until the
// connection is closed or the context is cancelled.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates protocol-specific handlers for accepted TCP
// connections. Protocol adapters implement this and pass themselves to
// Base.ServeWithFactory.
type ConnectionFactory interface {
	NewConnection(conn net.Conn) ConnectionHandler
}

// MetricsRecorder records connection lifecycle metrics. A nil recorder
// disables collection.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}
