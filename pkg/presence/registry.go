// Package presence keeps the authoritative list of live participants per room.
package presence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/protocol"
)

var (
	ErrAlreadyJoined = errors.New("connection already joined a room")
	ErrInvalidName   = errors.New("display name is required")
)

// Sink receives messages for one connection. Send must not block; it returns
// false when the message could not be queued.
type Sink interface {
	Send(msg protocol.Message) bool
}

// Member is a registered participant as seen by the HTTP surface
type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Room     string    `json:"room"`
	Muted    bool      `json:"muted"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomInfo summarises one room
type RoomInfo struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}

// Stats are cumulative registry counters
type Stats struct {
	Joins          uint64 `json:"joins"`
	Leaves         uint64 `json:"leaves"`
	Rejected       uint64 `json:"rejected"`
	BroadcastDrops uint64 `json:"broadcast_drops"`
}

type entry struct {
	member Member
	sink   Sink
}

type room struct {
	order   []string // connection ids in join order
	entries map[string]*entry
}

// Registry maps live connection ids to participants, grouped by room.
// Join and Leave run entirely under the write lock so observers never see a
// partial participant list.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*room
	index       map[string]string // connection id -> room id
	defaultRoom string
	log         *logger.Logger

	joins, leaves, rejected, drops atomic.Uint64
}

// NewRegistry creates an empty registry. An empty join room selects defaultRoom.
func NewRegistry(defaultRoom string, log *logger.Logger) *Registry {
	if defaultRoom == "" {
		defaultRoom = "main"
	}
	if log == nil {
		log = logger.NewDefault("HUDDLE")
	}
	return &Registry{
		rooms:       make(map[string]*room),
		index:       make(map[string]string),
		defaultRoom: defaultRoom,
		log:         log.Named("Presence"),
	}
}

// Join admits a connection. The joiner's sink receives the user-list of all
// other members before any of them is told about the arrival; the returned
// snapshot is the same list.
func (r *Registry) Join(roomID string, p protocol.Participant, sink Sink) ([]protocol.Participant, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		r.rejected.Add(1)
		return nil, ErrInvalidName
	}
	if roomID == "" {
		roomID = r.defaultRoom
	}
	p.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.index[p.ID]; ok {
		r.rejected.Add(1)
		return nil, fmt.Errorf("%w: %s is in room %s", ErrAlreadyJoined, p.ID, current)
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{entries: make(map[string]*entry)}
		r.rooms[roomID] = rm
	}

	snapshot := rm.participants()

	rm.order = append(rm.order, p.ID)
	rm.entries[p.ID] = &entry{
		member: Member{ID: p.ID, Name: p.Name, Room: roomID, JoinedAt: time.Now()},
		sink:   sink,
	}
	r.index[p.ID] = roomID
	r.joins.Add(1)

	r.deliver(p.ID, sink, protocol.UserList{Users: snapshot})
	r.broadcast(rm, p.ID, protocol.UserJoined{User: p})

	r.log.Info("%s (%s) joined room %s, %d present", p.Name, p.ID, roomID, len(rm.order))
	return snapshot, nil
}

// Leave removes a connection and tells the rest of its room. Unknown ids are a
// no-op, which makes Leave safe to call from both an explicit leave and the
// disconnect that follows it.
func (r *Registry) Leave(connID string) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.index[connID]
	if !ok {
		return Member{}, false
	}
	rm := r.rooms[roomID]
	e := rm.entries[connID]

	delete(r.index, connID)
	delete(rm.entries, connID)
	for i, id := range rm.order {
		if id == connID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	r.leaves.Add(1)

	if len(rm.order) == 0 {
		delete(r.rooms, roomID)
	} else {
		r.broadcast(rm, connID, protocol.UserLeft{ID: connID})
	}

	r.log.Info("%s (%s) left room %s", e.member.Name, connID, roomID)
	return e.member, true
}

// Deliver hands msg to target when it is a live member of the same room as
// from. The send happens under the read lock, so nothing reaches a member
// once Leave has removed it and broadcast user-left. found reports whether
// the target was routable, queued whether its sink accepted the message.
func (r *Registry) Deliver(from, target string, msg protocol.Message) (found, queued bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fromRoom, ok := r.index[from]
	if !ok {
		return false, false
	}
	targetRoom, ok := r.index[target]
	if !ok || targetRoom != fromRoom {
		return false, false
	}
	return true, r.rooms[targetRoom].entries[target].sink.Send(msg)
}

// Lookup returns the member registered under connID
func (r *Registry) Lookup(connID string) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.index[connID]
	if !ok {
		return Member{}, false
	}
	return r.rooms[roomID].entries[connID].member, true
}

// SetMuted records the last mic state a member reported
func (r *Registry) SetMuted(connID string, muted bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.index[connID]
	if !ok {
		return false
	}
	r.rooms[roomID].entries[connID].member.Muted = muted
	return true
}

// Snapshot lists the members of a room in join order
func (r *Registry) Snapshot(roomID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return []Member{}
	}
	out := make([]Member, 0, len(rm.order))
	for _, id := range rm.order {
		out = append(out, rm.entries[id].member)
	}
	return out
}

// Rooms lists the rooms that currently have members, sorted by id
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		out = append(out, RoomInfo{Room: id, Count: len(rm.order)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

// Count returns the number of live connections across all rooms
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

func (r *Registry) Stats() Stats {
	return Stats{
		Joins:          r.joins.Load(),
		Leaves:         r.leaves.Load(),
		Rejected:       r.rejected.Load(),
		BroadcastDrops: r.drops.Load(),
	}
}

func (rm *room) participants() []protocol.Participant {
	out := make([]protocol.Participant, 0, len(rm.order))
	for _, id := range rm.order {
		m := rm.entries[id].member
		out = append(out, protocol.Participant{ID: m.ID, Name: m.Name})
	}
	return out
}

// broadcast sends msg to every member except the acting connection.
// Must be called with the write lock held.
func (r *Registry) broadcast(rm *room, except string, msg protocol.Message) {
	for _, id := range rm.order {
		if id == except {
			continue
		}
		r.deliver(id, rm.entries[id].sink, msg)
	}
}

func (r *Registry) deliver(connID string, sink Sink, msg protocol.Message) {
	if sink == nil {
		return
	}
	if !sink.Send(msg) {
		r.drops.Add(1)
		r.log.Warn("dropped %s for %s: send queue unavailable", msg.Kind(), connID)
	}
}
