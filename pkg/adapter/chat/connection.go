package chat

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/marmos91/relaychat/internal/logger"
	"github.com/marmos91/relaychat/pkg/chat"
	"github.com/marmos91/relaychat/pkg/wire"
)

// readPollInterval is the deadline applied to each blocking read so workers
// notice shutdown within a second even when the peer is silent.
const readPollInterval = time.Second

// bulkReadTimeout bounds the wait for a file payload after the upload
// request was acknowledged.
const bulkReadTimeout = 30 * time.Second

// connection is the per-client worker. It moves through three phases:
// login handshake, command loop, teardown. The session field is nil until
// login succeeds.
type connection struct {
	conn    net.Conn
	adapter *Adapter
	session *chat.Session
}

func newConnection(conn net.Conn, a *Adapter) *connection {
	return &connection{conn: conn, adapter: a}
}

// Serve drives the connection through its lifecycle. It returns when the
// client disconnects, sends /exit, violates framing, or shutdown begins.
func (c *connection) Serve(ctx context.Context) {
	defer c.cleanup()

	if !c.awaitLogin(ctx) {
		return
	}
	c.messageLoop(ctx)
}

// readFrame reads the next non-empty control frame, polling the shutdown
// context between deadline windows. Zero-length ping frames are skipped.
func (c *connection) readFrame(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(readPollInterval))
		payload, err := wire.ReadFrame(c.conn, wire.MaxFrameSize)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return nil, err
		}
		if payload == nil {
			continue
		}
		return payload, nil
	}
}

// awaitLogin runs the login handshake: a username frame and a working-path
// frame, validated in a loop until the client presents an acceptable pair or
// disconnects. Rejections are plain strings without a status tag; the client
// treats anything other than LOGIN_SUCCESS as a retry prompt.
func (c *connection) awaitLogin(ctx context.Context) bool {
	remote := c.conn.RemoteAddr().String()
	logger.Log(logger.TagClient, "Starting login", "address", remote)

	for {
		rawUser, err := c.readFrame(ctx)
		if err != nil {
			logger.Log(logger.TagClient, "Login aborted", "address", remote, "error", err)
			return false
		}
		rawPath, err := c.readFrame(ctx)
		if err != nil {
			logger.Log(logger.TagClient, "Login aborted", "address", remote, "error", err)
			return false
		}

		username := strings.TrimRight(string(rawUser), " \t\n\r")
		workDir := strings.TrimRight(string(rawPath), " \t\n\r")

		logger.Log(logger.TagClient, "Login attempt", "user", username, "address", remote, "path", workDir)

		if !chat.ValidUsername(username) {
			logger.Warn("Invalid username format", "user", username, "address", remote)
			c.rejectLogin(wire.MsgInvalidUsername, "invalid")
			continue
		}

		session := chat.NewSession(username, c.conn, workDir)
		if err := c.adapter.clients.Add(session); err != nil {
			if errors.Is(err, chat.ErrUsernameTaken) {
				logger.Warn("Username already taken", "user", username, "address", remote)
				c.rejectLogin(wire.MsgUsernameTaken, "taken")
			} else {
				logger.Error("Failed to register client", "user", username, "error", err)
				c.rejectLogin(wire.MsgServerError, "error")
			}
			continue
		}

		c.session = session
		if err := session.Send(wire.TagLoginSuccess); err != nil {
			return false
		}
		logger.Log(logger.TagClient, "User logged in", "user", username, "address", remote, "session", session.ID)
		if c.adapter.metrics != nil {
			c.adapter.metrics.RecordLogin()
		}
		return true
	}
}

func (c *connection) rejectLogin(msg, reason string) {
	_ = wire.WriteString(c.conn, msg)
	if c.adapter.metrics != nil {
		c.adapter.metrics.RecordLoginRejected(reason)
	}
}

// messageLoop reads framed command lines and dispatches them until the
// client disconnects, exits, or the connection becomes unrecoverable.
func (c *connection) messageLoop(ctx context.Context) {
	user := c.session.Username

	for {
		payload, err := c.readFrame(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Log(logger.TagClient, "Client disconnected", "user", user)
			case errors.Is(err, context.Canceled):
				// Shutdown notice was already delivered by the adapter.
			case errors.Is(err, wire.ErrFrameTooLarge):
				logger.Error("Framing violation, dropping connection", "user", user, "error", err)
			default:
				logger.Error("Read failed", "user", user, "error", err)
			}
			return
		}

		line := string(payload)
		if strings.TrimSpace(line) == "" {
			logger.Warn("Empty command", "user", user)
			c.reply("ERROR Empty command")
			continue
		}

		logger.Debug("Received command", "user", user, "command", line)

		done, err := c.dispatch(line)
		if err != nil {
			logger.Error("Command left connection unrecoverable", "user", user, "error", err)
			return
		}
		if done {
			return
		}
	}
}

// dispatch routes one command line. The bool result reports that the client
// requested exit; a non-nil error means the byte stream can no longer be
// trusted and the connection must close.
func (c *connection) dispatch(line string) (bool, error) {
	cmd := wire.ParseCommand(line)

	switch cmd.Name {
	case "/join":
		c.handleJoin(cmd.Args)
	case "/leave":
		c.handleLeave()
	case "/broadcast":
		c.handleBroadcast(cmd.Args)
	case "/whisper":
		c.handleWhisper(cmd.Args)
	case "/sendfile":
		return false, c.handleSendfile(cmd.Args)
	case "/exit":
		logger.Log(logger.TagClient, "User requested exit", "user", c.session.Username)
		return true, nil
	default:
		logger.Warn("Unknown command", "user", c.session.Username, "command", line)
		c.reply(wire.ErrorReply("Unknown command: %s", line))
	}
	return false, nil
}

// reply sends one framed message back to this connection's client. Send
// failures are not fatal here; the read loop discovers the dead socket.
func (c *connection) reply(msg string) {
	if c.session != nil {
		_ = c.session.Send(msg)
		return
	}
	_ = wire.WriteString(c.conn, msg)
}

// cleanup tears the connection down: deactivate the session, leave the
// current room with a disconnect notification, drop the registry entry, and
// close the socket. Runs on every exit path, including pre-login failures.
func (c *connection) cleanup() {
	if s := c.session; s != nil {
		s.Deactivate()

		if roomName := s.CurrentRoom(); roomName != "" {
			if room := c.adapter.rooms.Find(roomName); room != nil {
				count, others, left := room.Leave(s)
				if left {
					logger.Log(logger.TagRoom, "Removed user from room",
						"user", s.Username, "room", roomName, "remaining", count)
					note := wire.RoomDisconnected(s.Username)
					for _, m := range others {
						_ = m.Send(note)
					}
				}
				if c.adapter.rooms.RemoveIfEmpty(roomName) {
					logger.Log(logger.TagRoom, "Room removed (empty)", "room", roomName)
				}
				c.adapter.recordRoomCount()
			}
			s.SetCurrentRoom("")
		}

		c.adapter.clients.RemoveByConn(c.conn)
		logger.Log(logger.TagClient, "User disconnected",
			"user", s.Username, "address", s.RemoteAddr, "port", s.RemotePort)
	}

	_ = c.conn.Close()
}
