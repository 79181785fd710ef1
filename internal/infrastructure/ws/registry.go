package ws

// Conn is the transport-side view of one live client connection.
type Conn interface {
	ID() string
	// Send enqueues without blocking; false means the event was dropped.
	Send(ev *Outbound) bool
	// Close releases the outbound queue. Called once, by the Core.
	Close()
}

type room struct {
	order []string // connection ids in join order
	conns map[string]Conn
}

// Registry maps connections to the rooms they joined. Rooms only exist while
// they have members. It is not safe for concurrent use: the owning Core
// mutates it from its loop goroutine only.
type Registry struct {
	rooms       map[string]*room
	memberships map[string]map[string]struct{} // connID -> room keys
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]*room),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join adds conn to roomKey. It reports whether the membership is new;
// joining twice is a no-op.
func (r *Registry) Join(conn Conn, roomKey string) bool {
	id := conn.ID()

	rm, ok := r.rooms[roomKey]
	if !ok {
		rm = &room{conns: make(map[string]Conn)}
		r.rooms[roomKey] = rm
	}
	if _, exists := rm.conns[id]; exists {
		return false
	}

	rm.conns[id] = conn
	rm.order = append(rm.order, id)

	joined, ok := r.memberships[id]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[id] = joined
	}
	joined[roomKey] = struct{}{}

	return true
}

// Leave removes conn from a single room.
func (r *Registry) Leave(conn Conn, roomKey string) bool {
	id := conn.ID()

	if !r.removeFromRoom(id, roomKey) {
		return false
	}

	if joined, ok := r.memberships[id]; ok {
		delete(joined, roomKey)
		if len(joined) == 0 {
			delete(r.memberships, id)
		}
	}
	return true
}

// Release drops every membership of conn and returns the rooms it was in.
func (r *Registry) Release(conn Conn) []string {
	id := conn.ID()

	joined, ok := r.memberships[id]
	if !ok {
		return nil
	}
	delete(r.memberships, id)

	left := make([]string, 0, len(joined))
	for roomKey := range joined {
		r.removeFromRoom(id, roomKey)
		left = append(left, roomKey)
	}
	return left
}

func (r *Registry) removeFromRoom(id, roomKey string) bool {
	rm, ok := r.rooms[roomKey]
	if !ok {
		return false
	}
	if _, exists := rm.conns[id]; !exists {
		return false
	}

	delete(rm.conns, id)
	for i, member := range rm.order {
		if member == id {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}

	if len(rm.conns) == 0 {
		delete(r.rooms, roomKey)
	}
	return true
}

// Members returns a snapshot of the room's connections in join order.
func (r *Registry) Members(roomKey string) []Conn {
	rm, ok := r.rooms[roomKey]
	if !ok {
		return nil
	}

	members := make([]Conn, 0, len(rm.order))
	for _, id := range rm.order {
		members = append(members, rm.conns[id])
	}
	return members
}

func (r *Registry) IsMember(conn Conn, roomKey string) bool {
	rm, ok := r.rooms[roomKey]
	if !ok {
		return false
	}
	_, exists := rm.conns[conn.ID()]
	return exists
}

func (r *Registry) Rooms(conn Conn) []string {
	joined := r.memberships[conn.ID()]

	keys := make([]string, 0, len(joined))
	for roomKey := range joined {
		keys = append(keys, roomKey)
	}
	return keys
}

func (r *Registry) RoomCount() int {
	return len(r.rooms)
}
