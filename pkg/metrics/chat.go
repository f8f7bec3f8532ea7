package metrics

// ChatMetrics provides observability for the chat adapter.
//
// Implementations record connection lifecycle, message routing, and file
// transfer outcomes. The interface is optional: pass nil to disable
// collection with zero overhead.
type ChatMetrics interface {
	// RecordConnectionAccepted increments the accepted-connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed-connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed after the
	// shutdown grace expired.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the active connection gauge.
	SetActiveConnections(count int32)

	// RecordLogin counts a successful login handshake.
	RecordLogin()

	// RecordLoginRejected counts a rejected login attempt by reason
	// ("invalid", "taken").
	RecordLoginRejected(reason string)

	// RecordBroadcast records a room broadcast with its delivery counts.
	RecordBroadcast(delivered, recipients int)

	// RecordWhisper counts a delivered whisper.
	RecordWhisper()

	// RecordTransferStarted counts an admitted file transfer.
	RecordTransferStarted()

	// RecordTransferCompleted records a finished transfer and its size.
	RecordTransferCompleted(bytes int)

	// RecordTransferFailed counts a failed or aborted transfer.
	RecordTransferFailed()

	// SetRoomCount updates the active room gauge.
	SetRoomCount(count int)

	// SetQueueDepth updates the transfer queue depth gauge.
	SetQueueDepth(count int)
}
