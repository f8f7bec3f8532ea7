package chat

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/relaychat/pkg/wire"
)

// newTestSession creates a session over net.Pipe and returns the peer end
// for reading what the server sends.
func newTestSession(t *testing.T, username string) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return NewSession(username, server, "/tmp"), client
}

// drainFrames reads frames from conn into a channel until the pipe closes.
func drainFrames(conn net.Conn) <-chan string {
	ch := make(chan string, 64)
	go func() {
		defer close(ch)
		for {
			payload, err := wire.ReadFrame(conn, wire.MaxFrameSize)
			if err != nil {
				return
			}
			ch <- string(payload)
		}
	}()
	return ch
}

func TestValidUsername(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"a", true},
		{"alice", true},
		{"ABCDEFGHIJKLMNOP", true},  // 16 chars
		{"ABCDEFGHIJKLMNOPQ", false}, // 17 chars
		{"", false},
		{"under_score", false},
		{"with space", false},
		{"héllo", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidUsername(tt.name), "username %q", tt.name)
	}
}

func TestValidRoomName(t *testing.T) {
	long32 := "abcdefghijklmnopqrstuvwxyz123456"
	require.Len(t, long32, 32)

	assert.True(t, ValidRoomName("room1"))
	assert.True(t, ValidRoomName(long32))
	assert.False(t, ValidRoomName(long32+"x"))
	assert.False(t, ValidRoomName(""))
	assert.False(t, ValidRoomName("room one"))
}

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("pic.png"))
	assert.True(t, AllowedExtension("notes.TXT"))
	assert.True(t, AllowedExtension("clip.Mp4"))
	assert.False(t, AllowedExtension("tool.exe"))
	assert.False(t, AllowedExtension("noextension"))
	assert.False(t, AllowedExtension("archive.tar.gz"))
}

func TestClientRegistryUniqueUsernames(t *testing.T) {
	reg := NewClientRegistry()

	alice, _ := newTestSession(t, "alice")
	require.NoError(t, reg.Add(alice))

	impostor, _ := newTestSession(t, "alice")
	err := reg.Add(impostor)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, 1, reg.Count())
}

func TestClientRegistryLookups(t *testing.T) {
	reg := NewClientRegistry()

	alice, _ := newTestSession(t, "alice")
	bob, _ := newTestSession(t, "bob")
	require.NoError(t, reg.Add(alice))
	require.NoError(t, reg.Add(bob))

	assert.Same(t, alice, reg.FindByUsername("alice"))
	assert.Same(t, bob, reg.FindByConn(bob.Conn()))
	assert.Nil(t, reg.FindByUsername("carol"))

	// Inactive sessions are invisible to lookups.
	bob.Deactivate()
	assert.Nil(t, reg.FindByUsername("bob"))

	assert.True(t, reg.RemoveByConn(alice.Conn()))
	assert.False(t, reg.RemoveByUsername("alice"))
	assert.Equal(t, 1, reg.Count())
}

func TestClientRegistryIterate(t *testing.T) {
	reg := NewClientRegistry()
	for i := 0; i < 5; i++ {
		s, _ := newTestSession(t, fmt.Sprintf("user%d", i))
		require.NoError(t, reg.Add(s))
	}

	seen := 0
	reg.Iterate(func(*Session) { seen++ })
	assert.Equal(t, 5, seen)
}

func TestRoomJoinSnapshotsRecipients(t *testing.T) {
	rooms := NewRoomRegistry()
	room, created := rooms.AddOrGet("room1")
	require.True(t, created)

	alice, _ := newTestSession(t, "alice")
	count, others, err := room.Join(alice)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, others)

	bob, _ := newTestSession(t, "bob")
	count, others, err = room.Join(bob)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, others, 1)
	assert.Same(t, alice, others[0])
}

func TestRoomCapacity(t *testing.T) {
	room, _ := NewRoomRegistry().AddOrGet("packed")

	for i := 0; i < MaxRoomMembers; i++ {
		s, _ := newTestSession(t, fmt.Sprintf("user%d", i))
		_, _, err := room.Join(s)
		require.NoError(t, err)
	}

	extra, _ := newTestSession(t, "extra")
	_, _, err := room.Join(extra)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, MaxRoomMembers, room.MemberCount())
}

func TestRoomLeave(t *testing.T) {
	room, _ := NewRoomRegistry().AddOrGet("room1")

	alice, _ := newTestSession(t, "alice")
	bob, _ := newTestSession(t, "bob")
	_, _, err := room.Join(alice)
	require.NoError(t, err)
	_, _, err = room.Join(bob)
	require.NoError(t, err)

	count, others, left := room.Leave(alice)
	assert.True(t, left)
	assert.Equal(t, 1, count)
	require.Len(t, others, 1)
	assert.Same(t, bob, others[0])

	// Leaving twice is reported, not fatal.
	_, _, left = room.Leave(alice)
	assert.False(t, left)
}

func TestRoomBroadcastExcludesSender(t *testing.T) {
	room, _ := NewRoomRegistry().AddOrGet("room1")

	alice, _ := newTestSession(t, "alice")
	bob, bobPeer := newTestSession(t, "bob")
	_, _, err := room.Join(alice)
	require.NoError(t, err)
	_, _, err = room.Join(bob)
	require.NoError(t, err)

	bobFrames := drainFrames(bobPeer)

	delivered, total := room.Broadcast(alice, "BROADCAST [alice@room1]: hello")
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, "BROADCAST [alice@room1]: hello", <-bobFrames)
	assert.Equal(t, 1, room.Broadcasts())
}

func TestRoomBroadcastCountsFailures(t *testing.T) {
	room, _ := NewRoomRegistry().AddOrGet("room1")

	alice, _ := newTestSession(t, "alice")
	bob, bobPeer := newTestSession(t, "bob")
	_, _, err := room.Join(alice)
	require.NoError(t, err)
	_, _, err = room.Join(bob)
	require.NoError(t, err)

	// Closed peer: the send fails but the broadcast proceeds.
	_ = bobPeer.Close()
	_ = bob.Conn().Close()

	delivered, total := room.Broadcast(alice, "BROADCAST [alice@room1]: hello")
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, delivered)
}

func TestRoomRegistryRemoveIfEmpty(t *testing.T) {
	rooms := NewRoomRegistry()
	room, _ := rooms.AddOrGet("room1")

	alice, _ := newTestSession(t, "alice")
	_, _, err := room.Join(alice)
	require.NoError(t, err)

	assert.False(t, rooms.RemoveIfEmpty("room1"), "occupied room must stay")

	room.Leave(alice)
	assert.True(t, rooms.RemoveIfEmpty("room1"))
	assert.Nil(t, rooms.Find("room1"))
	assert.False(t, rooms.RemoveIfEmpty("room1"))
}

func TestRoomRegistryAddOrGetIdempotent(t *testing.T) {
	rooms := NewRoomRegistry()

	r1, created := rooms.AddOrGet("room1")
	assert.True(t, created)
	r2, created := rooms.AddOrGet("room1")
	assert.False(t, created)
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, rooms.Count())
}

func TestTransferQueueBound(t *testing.T) {
	q := NewTransferQueue()

	tickets := make([]*Ticket, 0, MaxQueuedTransfers)
	for i := 0; i < MaxQueuedTransfers; i++ {
		tk := &Ticket{Filename: fmt.Sprintf("f%d.txt", i), Payload: []byte{1}}
		require.NoError(t, q.Admit(tk))
		tickets = append(tickets, tk)
	}
	assert.True(t, q.Full())

	err := q.Admit(&Ticket{Filename: "overflow.txt"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, MaxQueuedTransfers, q.Count())

	q.Remove(tickets[2])
	assert.False(t, q.Full())
	assert.Equal(t, MaxQueuedTransfers-1, q.Count())
	assert.Nil(t, tickets[2].Payload, "payload released on removal")

	// Removing an unqueued ticket is a no-op.
	q.Remove(tickets[2])
	assert.Equal(t, MaxQueuedTransfers-1, q.Count())
}

func TestTransferQueueDrainAndAbort(t *testing.T) {
	q := NewTransferQueue()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Admit(&Ticket{
			Filename: fmt.Sprintf("f%d.txt", i),
			Payload:  make([]byte, 8),
		}))
	}

	var notified []string
	drained := q.DrainAndAbort(func(tk *Ticket) {
		notified = append(notified, tk.Filename)
		assert.NotNil(t, tk.Payload, "payload still owned during notify")
	})

	assert.Equal(t, 3, drained)
	assert.Len(t, notified, 3)
	assert.Equal(t, 0, q.Count())
}

func TestSessionSendFileIsAtomic(t *testing.T) {
	s, peer := newTestSession(t, "bob")

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := s.SendFile("FILE_DOWNLOAD:pic.png:10:alice", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
		assert.NoError(t, err)
	}()

	header, err := wire.ReadFrame(peer, wire.MaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, "FILE_DOWNLOAD:pic.png:10:alice", string(header))

	payload, err := wire.ReadBulk(peer, wire.MaxBulkSize)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, payload)
	<-done
}
