package adapter

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/relaychat/internal/logger"
)

// BaseConfig holds configuration common to all protocol adapters.
type BaseConfig struct {
	// BindAddress is the IP address to bind to. Empty or "0.0.0.0" binds all
	// interfaces.
	BindAddress string

	// Port is the TCP port to listen on.
	Port int

	// MaxConnections limits concurrent client connections. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout is the maximum time to wait for active connections to
	// drain during graceful shutdown.
	ShutdownTimeout time.Duration

	// MetricsLogInterval is the interval at which to log the active
	// connection count. 0 disables periodic logging.
	MetricsLogInterval time.Duration
}

// Base provides shared TCP lifecycle management for protocol adapters.
//
// Protocol adapters embed this struct and delegate listener management,
// graceful shutdown, and connection tracking to it, injecting their own
// behavior through ConnectionFactory and the OnShutdown hook.
//
// All exported methods are safe for concurrent use; the shutdown path uses
// sync.Once so Stop is idempotent.
type Base struct {
	Config BaseConfig

	protocolName string

	// Metrics records connection lifecycle events. Nil disables collection.
	Metrics MetricsRecorder

	// OnShutdown, if set, runs exactly once when shutdown is initiated,
	// before the listener closes and before blocked reads are interrupted.
	// Protocol adapters use it to notify connected peers.
	OnShutdown func()

	listener   net.Listener
	listenerMu sync.RWMutex

	// activeConns tracks connection goroutines for the drain wait.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once

	// Shutdown is closed when shutdown is initiated. Monitored by the accept
	// loop and by connection handlers.
	Shutdown chan struct{}

	// ConnCount is the current number of active connections.
	ConnCount atomic.Int32

	// connSemaphore bounds concurrency when MaxConnections > 0; nil otherwise.
	connSemaphore chan struct{}

	// ShutdownCtx is cancelled during shutdown so in-flight operations can
	// abort. Passed to every connection handler.
	ShutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to net.Conn for read interruption
	// and forced closure.
	activeConnections sync.Map

	// ListenerReady is closed once the listener is accepting. Tests use it to
	// synchronize with startup.
	ListenerReady chan struct{}
}

// NewBase creates a stopped Base adapter. Call ServeWithFactory to start.
func NewBase(config BaseConfig, protocol string) *Base {
	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())

	return &Base{
		Config:         config,
		protocolName:   protocol,
		Shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		ShutdownCtx:    shutdownCtx,
		cancelRequests: cancel,
		ListenerReady:  make(chan struct{}),
	}
}

// ServeWithFactory runs the shared accept loop, delegating to factory for
// protocol-specific connection handling. Blocks until shutdown.
func (b *Base) ServeWithFactory(ctx context.Context, factory ConnectionFactory) error {
	listenAddr := fmt.Sprintf("%s:%d", b.Config.BindAddress, b.Config.Port)
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("creating %s listener on port %d: %w", b.protocolName, b.Config.Port, err)
	}

	b.listenerMu.Lock()
	b.listener = listener
	b.listenerMu.Unlock()
	close(b.ListenerReady)

	logger.Log(logger.TagServer, b.protocolName+" server listening", "address", listener.Addr().String())

	go func() {
		<-ctx.Done()
		b.initiateShutdown()
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}

	for {
		if b.connSemaphore != nil {
			select {
			case b.connSemaphore <- struct{}{}:
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
		}

		tcpConn, err := b.listener.Accept()
		if err != nil {
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			default:
				logger.Debug("Accept failed", "protocol", b.protocolName, "error", err)
				continue
			}
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", "error", err)
			}
		}

		b.activeConns.Add(1)
		current := b.ConnCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		b.activeConnections.Store(connAddr, tcpConn)

		if b.Metrics != nil {
			b.Metrics.RecordConnectionAccepted()
			b.Metrics.SetActiveConnections(current)
		}

		logger.Log(logger.TagClient, "Connection accepted", "address", connAddr, "active", current)

		handler := factory.NewConnection(tcpConn)

		go func(addr string) {
			defer func() {
				b.activeConnections.Delete(addr)
				b.activeConns.Done()
				remaining := b.ConnCount.Add(-1)
				if b.connSemaphore != nil {
					<-b.connSemaphore
				}
				if b.Metrics != nil {
					b.Metrics.RecordConnectionClosed()
					b.Metrics.SetActiveConnections(remaining)
				}
				logger.Log(logger.TagClient, "Connection closed", "address", addr, "active", remaining)
			}()

			handler.Serve(b.ShutdownCtx)
		}(connAddr)
	}
}

// initiateShutdown runs the shutdown sequence exactly once: peer
// notification hook, shutdown channel close, listener close, read
// interruption, request cancellation.
func (b *Base) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Log(logger.TagServer, b.protocolName+" shutdown initiated")

		if b.OnShutdown != nil {
			b.OnShutdown()
		}

		close(b.Shutdown)

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing listener", "protocol", b.protocolName, "error", err)
			}
		}
		b.listenerMu.Unlock()

		b.interruptBlockingReads()
		b.cancelRequests()
	})
}

// interruptBlockingReads sets a short deadline on every active connection so
// readers blocked in ReadFrame return promptly during shutdown.
func (b *Base) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	b.activeConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("Error setting shutdown deadline", "address", key, "error", err)
			}
		}
		return true
	})
}

// gracefulShutdown waits for active connections to drain or the timeout to
// expire, force-closing stragglers.
func (b *Base) gracefulShutdown() error {
	active := b.ConnCount.Load()
	logger.Log(logger.TagServer, "Waiting for active connections",
		"active", active, "timeout", b.Config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log(logger.TagServer, "Graceful shutdown complete")
		return nil

	case <-time.After(b.Config.ShutdownTimeout):
		remaining := b.ConnCount.Load()
		logger.Warn("Shutdown timeout exceeded, forcing closure",
			"active", remaining, "timeout", b.Config.ShutdownTimeout)
		b.forceCloseConnections()
		return fmt.Errorf("%s shutdown timeout: %d connections force-closed", b.protocolName, remaining)
	}
}

func (b *Base) forceCloseConnections() {
	closed := 0
	b.activeConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err == nil {
			closed++
			if b.Metrics != nil {
				b.Metrics.RecordConnectionForceClosed()
			}
		}
		return true
	})
	if closed > 0 {
		logger.Log(logger.TagServer, "Force-closed connections", "count", closed)
	}
}

// Stop initiates graceful shutdown and waits for active connections to drain.
// With a nil context the configured ShutdownTimeout applies; otherwise the
// context controls the wait.
func (b *Base) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log(logger.TagServer, "Graceful shutdown complete")
		return nil
	case <-ctx.Done():
		logger.Warn("Shutdown context cancelled", "active", b.ConnCount.Load(), "error", ctx.Err())
		return ctx.Err()
	}
}

func (b *Base) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Log(logger.TagServer, "Server status", "active_connections", b.ConnCount.Load())
		}
	}
}

// ActiveConnections returns the current number of active connections.
func (b *Base) ActiveConnections() int32 {
	return b.ConnCount.Load()
}

// ListenerAddr returns the listening address. Blocks until the listener is
// ready, which makes it safe to call from tests racing startup.
func (b *Base) ListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()

	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Port returns the configured TCP port.
func (b *Base) Port() int {
	return b.Config.Port
}

// Protocol returns the protocol name.
func (b *Base) Protocol() string {
	return b.protocolName
}
