// Package client implements a wire-level chat client: the login handshake,
// framed command exchange, and both directions of file transfer. It backs
// the relaychat client command and the end-to-end tests.
package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/relaychat/pkg/wire"
)

// ErrLoginRejected reports a login attempt the server turned down. The
// server's reason string is carried verbatim.
var ErrLoginRejected = errors.New("login rejected")

// Client is a connection to a relaychat server.
//
// Methods are not safe for concurrent use; the caller owns the read/write
// sequencing, mirroring the single-threaded protocol.
type Client struct {
	conn net.Conn
}

// Dial connects to a relaychat server.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Login performs one login attempt: username frame, working-path frame, then
// the server's verdict. A rejection returns ErrLoginRejected wrapped with the
// server's reason; callers may retry with a different username on the same
// connection.
func (c *Client) Login(username, workDir string) error {
	if err := wire.WriteString(c.conn, username); err != nil {
		return fmt.Errorf("sending username: %w", err)
	}
	if err := wire.WriteString(c.conn, workDir); err != nil {
		return fmt.Errorf("sending working path: %w", err)
	}

	reply, err := c.Recv()
	if err != nil {
		return fmt.Errorf("reading login reply: %w", err)
	}
	if reply != wire.TagLoginSuccess {
		return fmt.Errorf("%w: %s", ErrLoginRejected, reply)
	}
	return nil
}

// Send transmits one framed command line.
func (c *Client) Send(line string) error {
	return wire.WriteString(c.conn, line)
}

// Recv reads the next framed server message, skipping empty ping frames.
func (c *Client) Recv() (string, error) {
	for {
		payload, err := wire.ReadFrame(c.conn, wire.MaxFrameSize)
		if err != nil {
			return "", err
		}
		if payload == nil {
			continue
		}
		return string(payload), nil
	}
}

// RecvTimeout reads the next framed server message with a deadline.
func (c *Client) RecvTimeout(timeout time.Duration) (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	return c.Recv()
}

// Upload streams a file payload to the server. Called immediately after the
// server's FILE_UPLOAD_REQUEST reply to /sendfile.
func (c *Client) Upload(payload []byte) error {
	if len(payload) > wire.MaxBulkSize {
		return fmt.Errorf("%w: %d bytes", wire.ErrBulkTooLarge, len(payload))
	}
	return wire.WriteBulk(c.conn, payload)
}

// UploadFile streams a file from disk.
func (c *Client) UploadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := c.Upload(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Download reads a file payload from the server. Called immediately after a
// FILE_DOWNLOAD header message arrives.
func (c *Client) Download() ([]byte, error) {
	return wire.ReadBulk(c.conn, wire.MaxBulkSize)
}

// DownloadHeader is a parsed FILE_DOWNLOAD:<name>:<size>:<sender> message.
type DownloadHeader struct {
	Filename string
	Size     int
	Sender   string
}

// ParseDownloadHeader parses a FILE_DOWNLOAD header message.
func ParseDownloadHeader(msg string) (DownloadHeader, error) {
	rest, ok := strings.CutPrefix(msg, wire.TagDownload+":")
	if !ok {
		return DownloadHeader{}, fmt.Errorf("not a file download header: %q", msg)
	}

	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return DownloadHeader{}, fmt.Errorf("malformed file download header: %q", msg)
	}
	size, err := strconv.Atoi(parts[1])
	if err != nil || size < 0 {
		return DownloadHeader{}, fmt.Errorf("bad size in file download header: %q", msg)
	}
	return DownloadHeader{Filename: parts[0], Size: size, Sender: parts[2]}, nil
}
