package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The literal reply strings are protocol contract; these pin the exact bytes
// clients pattern-match on.
func TestReplyStrings(t *testing.T) {
	assert.Equal(t, "JOIN_SUCCESS Joined room 'room1' (1/15 clients)", JoinSuccess("room1", 1, 15))
	assert.Equal(t, "ROOM_NOTIFICATION bob joined the room", RoomJoined("bob"))
	assert.Equal(t, "ROOM_NOTIFICATION bob left the room", RoomLeft("bob"))
	assert.Equal(t, "BROADCAST [alice@room1]: hello", Broadcast("alice", "room1", "hello"))
	assert.Equal(t, "BROADCAST_SUCCESS Message delivered to 1 recipient(s) in room 'room1'", BroadcastSuccess(1, "room1"))
	assert.Equal(t, "BROADCAST_PARTIAL Message delivered to 1/2 recipient(s) in room 'room1'", BroadcastPartial(1, 2, "room1"))
	assert.Equal(t, "WHISPER [alice → bob]: hi", Whisper("alice", "bob", "hi"))
	assert.Equal(t, "WHISPER_SENT Whisper sent to bob", WhisperSent("bob"))
	assert.Equal(t, "FILE_UPLOAD_REQUEST:pic.png:bob", UploadRequest("pic.png", "bob"))
	assert.Equal(t, "FILE_DOWNLOAD:pic.png:10:alice", Download("pic.png", 10, "alice"))
	assert.Equal(t, "FILE_TRANSFER_SUCCESS File 'pic.png' sent successfully to bob (10 bytes)", TransferSuccess("pic.png", "bob", 10))
	assert.Equal(t, "FILE_TRANSFER_FAILED Failed to send 'pic.png' to bob", TransferFailed("pic.png", "bob"))
	assert.Equal(t, "LEAVE_SUCCESS Left room 'room1'", LeaveSuccess("room1"))
	assert.Equal(t, "INFO You are already in room 'room1'", InfoAlreadyInRoom("room1"))
	assert.Equal(t, "SERVER_SHUTDOWN Server is shutting down. Please disconnect.", MsgServerShutdown)
	assert.Equal(t,
		"FILE_TRANSFER_ABORT Server shutting down - file transfer of 'a.txt' to 'bob' cancelled",
		TransferAbortSender("a.txt", "bob"))
	assert.Equal(t,
		"FILE_TRANSFER_ABORT Server shutting down - incoming file 'a.txt' from 'alice' cancelled",
		TransferAbortReceiver("a.txt", "alice"))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		name string
		args string
	}{
		{"/join room1", "/join", "room1"},
		{"/leave", "/leave", ""},
		{"/broadcast hello world", "/broadcast", "hello world"},
		{"/whisper bob  hi there", "/whisper", "bob  hi there"},
		{"/sendfile pic.png bob", "/sendfile", "pic.png bob"},
		{"/exit", "/exit", ""},
		{"/join  spaced  ", "/join", " spaced  "},
		{"", "", ""},
	}

	for _, tt := range tests {
		cmd := ParseCommand(tt.line)
		assert.Equal(t, tt.name, cmd.Name, "line %q", tt.line)
		assert.Equal(t, tt.args, cmd.Args, "line %q", tt.line)
	}
}
