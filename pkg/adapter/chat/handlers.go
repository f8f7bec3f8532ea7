package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/relaychat/internal/logger"
	"github.com/marmos91/relaychat/pkg/chat"
	"github.com/marmos91/relaychat/pkg/wire"
)

// handleJoin joins (or creates) a room, leaving the current one first.
func (c *connection) handleJoin(args string) {
	s := c.session

	if args == "" {
		c.reply("ERROR Usage: /join <room_name>")
		return
	}
	name := strings.TrimSpace(args)
	if name == "" {
		c.reply("ERROR Room name cannot be empty")
		return
	}
	if len(name) > chat.MaxRoomNameLength {
		c.reply(wire.ErrorReply("Room name too long (max %d characters)", chat.MaxRoomNameLength))
		return
	}
	if !chat.ValidRoomName(name) {
		logger.Warn("Invalid room name format", "user", s.Username, "room", name)
		c.reply("ERROR Room name must be alphanumeric only (no spaces or special characters)")
		return
	}

	if s.CurrentRoom() == name {
		logger.Info("User already in room", "user", s.Username, "room", name)
		c.reply(wire.InfoAlreadyInRoom(name))
		return
	}

	if prev := s.CurrentRoom(); prev != "" {
		c.leaveRoom(prev, wire.RoomLeft(s.Username))
		s.SetCurrentRoom("")
	}

	room, created := c.adapter.rooms.AddOrGet(name)
	if created {
		logger.Log(logger.TagRoom, "Created new room", "room", name)
	}

	count, others, err := room.Join(s)
	if err != nil {
		if created {
			c.adapter.rooms.RemoveIfEmpty(name)
		}
		logger.Warn("Room is full", "room", name, "user", s.Username)
		c.reply(wire.ErrorReply("Room '%s' is full (%d/%d clients)",
			name, chat.MaxRoomMembers, chat.MaxRoomMembers))
		return
	}
	s.SetCurrentRoom(name)
	c.adapter.recordRoomCount()

	c.reply(wire.JoinSuccess(name, count, chat.MaxRoomMembers))

	note := wire.RoomJoined(s.Username)
	for _, m := range others {
		_ = m.Send(note)
	}

	logger.Log(logger.TagJoin, "User joined room",
		"user", s.Username, "room", name, "members", fmt.Sprintf("%d/%d", count, chat.MaxRoomMembers))
}

// leaveRoom removes the session from roomName, notifies the remaining
// members with note, and reaps the room if it is now empty.
func (c *connection) leaveRoom(roomName, note string) (count int, left bool) {
	room := c.adapter.rooms.Find(roomName)
	if room == nil {
		return 0, false
	}

	count, others, left := room.Leave(c.session)
	if !left {
		return count, false
	}
	logger.Log(logger.TagRoom, "Client left room",
		"user", c.session.Username, "room", roomName, "remaining", count)

	for _, m := range others {
		_ = m.Send(note)
	}

	if c.adapter.rooms.RemoveIfEmpty(roomName) {
		logger.Log(logger.TagRoom, "Room removed (empty)", "room", roomName)
	}
	c.adapter.recordRoomCount()
	return count, true
}

// handleLeave leaves the current room.
func (c *connection) handleLeave() {
	s := c.session

	roomName := s.CurrentRoom()
	if roomName == "" {
		c.reply("ERROR You are not in any room")
		return
	}

	if c.adapter.rooms.Find(roomName) == nil {
		s.SetCurrentRoom("")
		c.reply("ERROR Room no longer exists")
		return
	}

	_, left := c.leaveRoom(roomName, wire.RoomLeft(s.Username))
	s.SetCurrentRoom("")
	if !left {
		c.reply("ERROR You were not properly registered in the room")
		return
	}

	c.reply(wire.LeaveSuccess(roomName))
	logger.Log(logger.TagLeave, "User left room", "user", s.Username, "room", roomName)
}

// handleBroadcast fans a message out to the sender's room.
func (c *connection) handleBroadcast(args string) {
	s := c.session

	if args == "" {
		c.reply("ERROR Usage: /broadcast <message>")
		return
	}

	roomName := s.CurrentRoom()
	if roomName == "" {
		c.reply("ERROR You must join a room first to broadcast messages")
		return
	}
	room := c.adapter.rooms.Find(roomName)
	if room == nil {
		s.SetCurrentRoom("")
		c.reply("ERROR Room no longer exists. Please join a room first.")
		return
	}

	msg := strings.TrimSpace(args)
	if msg == "" {
		c.reply("ERROR Broadcast message cannot be empty")
		return
	}

	delivered, total := room.Broadcast(s, wire.Broadcast(s.Username, roomName, msg))
	if c.adapter.metrics != nil {
		c.adapter.metrics.RecordBroadcast(delivered, total)
	}

	if delivered == total {
		c.reply(wire.BroadcastSuccess(total, roomName))
	} else {
		c.reply(wire.BroadcastPartial(delivered, total, roomName))
	}

	logger.Log(logger.TagBroadcast, "Broadcast delivered",
		"user", s.Username, "room", roomName, "delivered", delivered, "recipients", total)
}

// handleWhisper delivers a private message to one active user.
func (c *connection) handleWhisper(args string) {
	s := c.session

	if strings.TrimSpace(args) == "" {
		c.reply("ERROR Usage: /whisper <username> <message>")
		return
	}

	target, rest, found := strings.Cut(args, " ")
	if target == "" || !found || strings.TrimSpace(rest) == "" {
		c.reply("ERROR Usage: /whisper <username> <message>")
		return
	}
	msg := strings.TrimSpace(rest)

	if target == s.Username {
		c.reply("ERROR Cannot whisper to yourself")
		return
	}

	receiver := c.adapter.clients.FindByUsername(target)
	if receiver == nil {
		logger.Warn("Whisper target not found", "target", target, "user", s.Username)
		c.reply(wire.ErrorReply("User '%s' not found or offline", target))
		return
	}

	if err := receiver.Send(wire.Whisper(s.Username, target, msg)); err != nil {
		logger.Error("Failed to deliver whisper", "from", s.Username, "to", target, "error", err)
		c.reply("ERROR Failed to deliver whisper")
		return
	}

	c.reply(wire.WhisperSent(target))
	if c.adapter.metrics != nil {
		c.adapter.metrics.RecordWhisper()
	}
	logger.Log(logger.TagWhisper, "Whisper delivered", "from", s.Username, "to", target)
}

// handleSendfile brokers one file transfer: admission check, upload request,
// bulk receive from the sender, immediate delivery to the receiver.
//
// The returned error is non-nil only when the byte stream is unrecoverable
// (the sender declared an oversized payload or the bulk receive broke
// mid-stream); the caller must close the connection then.
func (c *connection) handleSendfile(args string) error {
	s := c.session
	a := c.adapter

	if strings.TrimSpace(args) == "" {
		c.reply("ERROR Usage: /sendfile <filename> <username>")
		return nil
	}

	filename, target, found := strings.Cut(strings.TrimSpace(args), " ")
	if !found {
		c.reply("ERROR Usage: /sendfile <filename> <username>")
		return nil
	}
	filename = strings.TrimSpace(filename)
	target = strings.TrimSpace(target)
	if filename == "" || target == "" {
		c.reply("ERROR Filename and username cannot be empty")
		return nil
	}

	if !chat.AllowedExtension(filename) {
		logger.Warn("Invalid file extension", "file", filename, "user", s.Username)
		c.reply("ERROR Invalid file type. Allowed: .txt, .pdf, .jpg, .png")
		return nil
	}

	if target == s.Username {
		c.reply("ERROR Cannot send file to yourself")
		return nil
	}

	receiver := a.clients.FindByUsername(target)
	if receiver == nil {
		logger.Warn("Sendfile target not found", "target", target, "user", s.Username)
		c.reply(wire.ErrorReply("User '%s' not found or offline", target))
		return nil
	}

	if a.queue.Full() {
		logger.Warn("File queue full, rejecting sendfile", "user", s.Username)
		c.reply(wire.ErrorReply("Upload queue is full (%d/%d). Please try again later.",
			a.queue.Count(), chat.MaxQueuedTransfers))
		return nil
	}

	if err := s.Send(wire.UploadRequest(filename, target)); err != nil {
		logger.Error("Failed to send upload request", "user", s.Username, "error", err)
		c.reply("ERROR Failed to initiate file transfer")
		return nil
	}

	s.SetUploading(true)
	_ = c.conn.SetReadDeadline(time.Now().Add(bulkReadTimeout))
	payload, err := wire.ReadBulk(c.conn, wire.MaxBulkSize)
	s.SetUploading(false)
	if err != nil {
		logger.Error("Failed to receive file data",
			"file", filename, "user", s.Username, "error", err)
		c.reply("ERROR Failed to receive file data")
		return fmt.Errorf("receiving file %q: %w", filename, err)
	}

	ticket := &chat.Ticket{
		Filename:        filename,
		Sender:          s.Username,
		Receiver:        target,
		Payload:         payload,
		Size:            len(payload),
		SenderSession:   s,
		ReceiverSession: receiver,
	}
	if err := a.queue.Admit(ticket); err != nil {
		logger.Error("Failed to add file transfer to queue",
			"file", filename, "from", s.Username, "to", target, "error", err)
		c.reply("ERROR Failed to add to transfer queue")
		return nil
	}
	a.recordQueueDepth()
	if a.metrics != nil {
		a.metrics.RecordTransferStarted()
	}

	logger.Log(logger.TagSendfile, "Processing transfer",
		"from", s.Username, "to", target, "file", filename, "bytes", len(payload))

	receiver.SetDownloading(true)
	err = receiver.SendFile(wire.Download(filename, len(payload), s.Username), payload)
	receiver.SetDownloading(false)

	if err == nil {
		c.reply(wire.TransferSuccess(filename, target, len(payload)))
		logger.Log(logger.TagSendfile, "Transfer completed",
			"from", s.Username, "to", target, "file", filename, "bytes", len(payload))
		if a.metrics != nil {
			a.metrics.RecordTransferCompleted(len(payload))
		}
	} else {
		c.reply(wire.TransferFailed(filename, target))
		logger.Error("Transfer failed",
			"from", s.Username, "to", target, "file", filename, "error", err)
		if a.metrics != nil {
			a.metrics.RecordTransferFailed()
		}
	}

	a.queue.Remove(ticket)
	a.recordQueueDepth()
	return nil
}
