// Package chat holds the server's in-memory domain model: connected
// sessions, rooms, and the bounded file-transfer queue. All state lives in
// this package's registries; connection workers interact with it only
// through their operation surfaces and hold no shared pointers beyond the
// lifetimes the registries guarantee.
package chat

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/relaychat/pkg/wire"
)

// Protocol limits. These are wire-visible contract, not tunables.
const (
	MaxUsernameLength = 16
	MaxRoomNameLength = 32
	MaxRoomMembers    = 15
)

// Session is the server-side state for one connected, logged-in user.
//
// Per-session fields are written only by the owning connection worker.
// Other workers reach a session through the registries to deliver messages;
// a send against a closed connection fails and is logged by the caller, it
// never panics or blocks the registry.
type Session struct {
	// ID correlates log records across the session's lifetime.
	ID string

	Username   string
	RemoteAddr string
	RemotePort int
	LoginTime  time.Time

	// WorkDir is the client's working-path string from the login handshake.
	// Recorded as opaque metadata; the server attaches no semantics to it.
	WorkDir string

	conn net.Conn

	// sendMu serializes all writes to conn so a framed notification from one
	// worker cannot interleave with a bulk file stream from another.
	sendMu sync.Mutex

	mu          sync.Mutex
	currentRoom string
	active      bool
	uploading   bool
	downloading bool
}

// NewSession wraps an accepted, logged-in connection.
func NewSession(username string, conn net.Conn, workDir string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		LoginTime: time.Now(),
		WorkDir:   workDir,
		conn:      conn,
		active:    true,
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		s.RemoteAddr = addr.IP.String()
		s.RemotePort = addr.Port
	} else {
		s.RemoteAddr = conn.RemoteAddr().String()
	}
	return s
}

// Conn exposes the underlying connection for the owning worker's read loop.
// Writes must go through Send and SendFile instead.
func (s *Session) Conn() net.Conn { return s.conn }

// Send delivers one framed message under the session's send mutex.
func (s *Session) Send(msg string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return wire.WriteString(s.conn, msg)
}

// SendFile delivers a FILE_DOWNLOAD header followed by the bulk payload as
// one uninterruptible sequence on the receiver's socket. Holding the send
// mutex across both keeps concurrent broadcasts from interleaving with the
// file bytes.
func (s *Session) SendFile(header string, payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := wire.WriteString(s.conn, header); err != nil {
		return err
	}
	return wire.WriteBulk(s.conn, payload)
}

// Active reports whether the session is still routable.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Deactivate marks the session unroutable. Called once by the owning worker
// when the connection enters teardown.
func (s *Session) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// CurrentRoom returns the room the session is a member of, or "".
func (s *Session) CurrentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRoom
}

// SetCurrentRoom records the session's room membership slot.
func (s *Session) SetCurrentRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoom = name
}

// SetUploading flags an in-flight upload on the session.
func (s *Session) SetUploading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = v
}

// SetDownloading flags an in-flight download on the session.
func (s *Session) SetDownloading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloading = v
}

// Transferring reports whether a file transfer touches this session.
func (s *Session) Transferring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploading || s.downloading
}

// ValidUsername reports whether name is 1..16 alphanumeric characters.
func ValidUsername(name string) bool {
	if len(name) == 0 || len(name) > MaxUsernameLength {
		return false
	}
	return alphanumeric(name)
}

// ValidRoomName reports whether name is 1..32 alphanumeric characters.
func ValidRoomName(name string) bool {
	if len(name) == 0 || len(name) > MaxRoomNameLength {
		return false
	}
	return alphanumeric(name)
}

func alphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// AllowedExtension reports whether filename carries one of the transfer
// allowlist extensions (.txt, .pdf, .jpg, .png, .mp4), case-insensitively.
func AllowedExtension(filename string) bool {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return false
	}
	switch strings.ToLower(filename[idx:]) {
	case ".txt", ".pdf", ".jpg", ".png", ".mp4":
		return true
	}
	return false
}
