package chat

import (
	"fmt"
	"sync"
	"time"
)

// MaxQueuedTransfers bounds concurrent file transfers across the whole
// server. The queue is global admission control, not a per-connection
// buffer.
const MaxQueuedTransfers = 5

// Ticket is one admitted file transfer. It uniquely owns its payload buffer
// from admission until removal; nothing else may retain a reference.
type Ticket struct {
	Filename  string
	Sender    string
	Receiver  string
	Payload   []byte
	Size      int
	CreatedAt time.Time

	// Both session handles are kept so shutdown can notify the two ends of
	// an in-flight transfer.
	SenderSession   *Session
	ReceiverSession *Session
}

// TransferQueue is the bounded admission queue for file transfers,
// capacity MaxQueuedTransfers, guarded by one lock.
type TransferQueue struct {
	mu      sync.Mutex
	tickets []*Ticket
}

// NewTransferQueue creates an empty transfer queue.
func NewTransferQueue() *TransferQueue {
	return &TransferQueue{}
}

// Admit reserves a queue slot for t. Fails with ErrQueueFull when
// MaxQueuedTransfers tickets are outstanding. Callers precheck Full before
// requesting the upload, so an Admit failure here means the queue filled
// while the payload was in flight.
func (q *TransferQueue) Admit(t *Ticket) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tickets) >= MaxQueuedTransfers {
		return fmt.Errorf("%w (%d/%d)", ErrQueueFull, len(q.tickets), MaxQueuedTransfers)
	}
	t.CreatedAt = time.Now()
	q.tickets = append(q.tickets, t)
	return nil
}

// Remove releases t's slot and drops the payload buffer. Removing a ticket
// that is not queued is a no-op.
func (q *TransferQueue) Remove(t *Ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, cur := range q.tickets {
		if cur == t {
			q.tickets = append(q.tickets[:i], q.tickets[i+1:]...)
			t.Payload = nil
			return
		}
	}
}

// Full reports whether the queue is at capacity.
func (q *TransferQueue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tickets) >= MaxQueuedTransfers
}

// Count returns the number of outstanding tickets.
func (q *TransferQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tickets)
}

// DrainAndAbort empties the queue during shutdown, invoking notify for each
// outstanding ticket before its payload is released. notify runs under the
// queue lock; it must only send on the ticket's sessions.
func (q *TransferQueue) DrainAndAbort(notify func(*Ticket)) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := len(q.tickets)
	for _, t := range q.tickets {
		if notify != nil {
			notify(t)
		}
		t.Payload = nil
	}
	q.tickets = nil
	return drained
}
