package chat

import "errors"

// Domain sentinel errors. Handlers translate these into the protocol's
// ERROR reply strings; callers match with errors.Is.
var (
	// ErrInvalidUsername reports a username outside 1..16 alphanumerics.
	ErrInvalidUsername = errors.New("invalid username format")

	// ErrUsernameTaken reports a username already claimed by an active session.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrUserNotFound reports a lookup for a user with no active session.
	ErrUserNotFound = errors.New("user not found or offline")

	// ErrInvalidRoomName reports a room name outside 1..32 alphanumerics.
	ErrInvalidRoomName = errors.New("invalid room name")

	// ErrRoomFull reports a join against a room at member capacity.
	ErrRoomFull = errors.New("room is full")

	// ErrNotInRoom reports a room operation from a session that is not a member.
	ErrNotInRoom = errors.New("not in any room")

	// ErrQueueFull reports a transfer admission against a full queue.
	ErrQueueFull = errors.New("upload queue is full")

	// ErrInvalidExtension reports a filename outside the transfer allowlist.
	ErrInvalidExtension = errors.New("invalid file type")

	// ErrSelfTarget reports a whisper or transfer aimed at the sender itself.
	ErrSelfTarget = errors.New("cannot target yourself")
)
