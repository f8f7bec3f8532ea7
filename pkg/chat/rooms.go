package chat

import (
	"fmt"
	"sync"
	"time"
)

// Room is a named group chat scope with a bounded member set.
//
// Each room carries its own lock guarding membership, counters, and the
// last-activity timestamp. Lock order is registry before room, never the
// reverse: workers look a room up under the registry lock, release it, then
// lock the room.
type Room struct {
	name      string
	createdAt time.Time

	mu           sync.Mutex
	members      map[string]*Session
	broadcasts   int
	lastActivity time.Time
}

func newRoom(name string) *Room {
	now := time.Now()
	return &Room{
		name:         name,
		createdAt:    now,
		members:      make(map[string]*Session, MaxRoomMembers),
		lastActivity: now,
	}
}

// Name returns the immutable room name.
func (r *Room) Name() string { return r.name }

// CreatedAt returns the room creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// MemberCount returns the current number of members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Broadcasts returns the total number of broadcasts dispatched in the room.
func (r *Room) Broadcasts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcasts
}

// LastActivity returns the time of the last membership change or broadcast.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Join inserts s into the room and snapshots the other members to notify,
// all in one critical section, so the member count in the caller's reply
// always agrees with the set of recipients notified. The caller sends the
// notifications after this returns, off the room lock.
//
// Fails with ErrRoomFull at capacity. Joining a room the session is already
// in is the caller's responsibility to screen out.
func (r *Room) Join(s *Session) (count int, others []*Session, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= MaxRoomMembers {
		return 0, nil, fmt.Errorf("%w: %q (%d/%d)", ErrRoomFull, r.name, len(r.members), MaxRoomMembers)
	}

	for _, m := range r.members {
		if m != s && m.Active() {
			others = append(others, m)
		}
	}
	r.members[s.Username] = s
	r.lastActivity = time.Now()
	return len(r.members), others, nil
}

// Leave removes s from the room and snapshots the remaining active members
// to notify. Reports false if s was not a member.
func (r *Room) Leave(s *Session) (count int, others []*Session, left bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[s.Username]; !ok {
		return len(r.members), nil, false
	}
	delete(r.members, s.Username)
	r.lastActivity = time.Now()

	for _, m := range r.members {
		if m.Active() {
			others = append(others, m)
		}
	}
	return len(r.members), others, true
}

// Broadcast fans msg out to every active member except the sender, holding
// the room lock for the duration so every member present at this instant
// receives it. Per-member send failures are counted, not fatal; each
// failing member's own worker discovers the closed connection.
func (r *Room) Broadcast(sender *Session, msg string) (delivered, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members {
		if m == sender || !m.Active() {
			continue
		}
		total++
		if err := m.Send(msg); err == nil {
			delivered++
		}
	}
	r.broadcasts++
	r.lastActivity = time.Now()
	return delivered, total
}

// RoomRegistry maps room names to rooms under a single lock. Rooms are
// created on first join and removed when their last member leaves; empty
// rooms never linger in the registry beyond the operation that emptied them.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRoomRegistry creates an empty room registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room)}
}

// AddOrGet returns the named room, creating it if absent. The second result
// reports whether the room was created by this call.
func (r *RoomRegistry) AddOrGet(name string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[name]; ok {
		return room, false
	}
	room := newRoom(name)
	r.rooms[name] = room
	return room, true
}

// Find returns the named room, or nil.
func (r *RoomRegistry) Find(name string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[name]
}

// RemoveIfEmpty deletes the named room if it has no members. Reports
// whether a removal happened. Registry lock is taken before the room lock,
// matching the global lock order.
func (r *RoomRegistry) RemoveIfEmpty(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[name]
	if !ok {
		return false
	}
	room.mu.Lock()
	empty := len(room.members) == 0
	room.mu.Unlock()

	if !empty {
		return false
	}
	delete(r.rooms, name)
	return true
}

// Iterate calls fn for every room while holding the registry lock.
func (r *RoomRegistry) Iterate(fn func(*Room)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		fn(room)
	}
}

// Count returns the number of rooms.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
