package wire

import (
	"fmt"
	"strings"
)

// Status tags. Every server reply is a framed string whose first token is
// one of these; clients dispatch on the tag.
const (
	TagLoginSuccess     = "LOGIN_SUCCESS"
	TagJoinSuccess      = "JOIN_SUCCESS"
	TagLeaveSuccess     = "LEAVE_SUCCESS"
	TagBroadcastSuccess = "BROADCAST_SUCCESS"
	TagBroadcastPartial = "BROADCAST_PARTIAL"
	TagWhisperSent      = "WHISPER_SENT"
	TagRoomNotification = "ROOM_NOTIFICATION"
	TagBroadcast        = "BROADCAST"
	TagWhisper          = "WHISPER"
	TagUploadRequest    = "FILE_UPLOAD_REQUEST"
	TagDownload         = "FILE_DOWNLOAD"
	TagTransferSuccess  = "FILE_TRANSFER_SUCCESS"
	TagTransferFailed   = "FILE_TRANSFER_FAILED"
	TagTransferAbort    = "FILE_TRANSFER_ABORT"
	TagServerShutdown   = "SERVER_SHUTDOWN"
	TagInfo             = "INFO"
	TagError            = "ERROR"
)

// Fixed reply strings. Login rejections are plain strings without a status
// tag; the client treats anything other than LOGIN_SUCCESS as a retry prompt.
const (
	MsgInvalidUsername = "Invalid username format"
	MsgUsernameTaken   = "Username already taken"
	MsgServerError     = "Server error"

	MsgServerShutdown = "SERVER_SHUTDOWN Server is shutting down. Please disconnect."
)

// Reply constructors. The exact byte sequences are part of the protocol
// contract; clients pattern-match on them.

func ErrorReply(format string, args ...any) string {
	return TagError + " " + fmt.Sprintf(format, args...)
}

func InfoAlreadyInRoom(room string) string {
	return fmt.Sprintf("INFO You are already in room '%s'", room)
}

func JoinSuccess(room string, members, capacity int) string {
	return fmt.Sprintf("JOIN_SUCCESS Joined room '%s' (%d/%d clients)", room, members, capacity)
}

func LeaveSuccess(room string) string {
	return fmt.Sprintf("LEAVE_SUCCESS Left room '%s'", room)
}

func RoomJoined(username string) string {
	return fmt.Sprintf("ROOM_NOTIFICATION %s joined the room", username)
}

func RoomLeft(username string) string {
	return fmt.Sprintf("ROOM_NOTIFICATION %s left the room", username)
}

func RoomDisconnected(username string) string {
	return fmt.Sprintf("ROOM_NOTIFICATION %s disconnected", username)
}

func Broadcast(sender, room, message string) string {
	return fmt.Sprintf("BROADCAST [%s@%s]: %s", sender, room, message)
}

func BroadcastSuccess(recipients int, room string) string {
	return fmt.Sprintf("BROADCAST_SUCCESS Message delivered to %d recipient(s) in room '%s'", recipients, room)
}

func BroadcastPartial(delivered, recipients int, room string) string {
	return fmt.Sprintf("BROADCAST_PARTIAL Message delivered to %d/%d recipient(s) in room '%s'", delivered, recipients, room)
}

func Whisper(sender, target, message string) string {
	return fmt.Sprintf("WHISPER [%s → %s]: %s", sender, target, message)
}

func WhisperSent(target string) string {
	return fmt.Sprintf("WHISPER_SENT Whisper sent to %s", target)
}

func UploadRequest(filename, target string) string {
	return fmt.Sprintf("FILE_UPLOAD_REQUEST:%s:%s", filename, target)
}

func Download(filename string, size int, sender string) string {
	return fmt.Sprintf("FILE_DOWNLOAD:%s:%d:%s", filename, size, sender)
}

func TransferSuccess(filename, target string, size int) string {
	return fmt.Sprintf("FILE_TRANSFER_SUCCESS File '%s' sent successfully to %s (%d bytes)", filename, target, size)
}

func TransferFailed(filename, target string) string {
	return fmt.Sprintf("FILE_TRANSFER_FAILED Failed to send '%s' to %s", filename, target)
}

// TransferAbortSender notifies the sending side of a queued transfer that
// shutdown cancelled it.
func TransferAbortSender(filename, receiver string) string {
	return fmt.Sprintf("FILE_TRANSFER_ABORT Server shutting down - file transfer of '%s' to '%s' cancelled", filename, receiver)
}

// TransferAbortReceiver notifies the receiving side.
func TransferAbortReceiver(filename, sender string) string {
	return fmt.Sprintf("FILE_TRANSFER_ABORT Server shutting down - incoming file '%s' from '%s' cancelled", filename, sender)
}

// Command is a parsed client command line.
type Command struct {
	Name string // leading token, including the slash: "/join"
	Args string // remainder after the first space, untrimmed
}

// ParseCommand splits a framed command line into its name and argument
// string. The argument string keeps its original spacing; handlers trim
// according to their own rules.
func ParseCommand(line string) Command {
	name, args, found := strings.Cut(line, " ")
	if !found {
		return Command{Name: line}
	}
	return Command{Name: name, Args: args}
}
