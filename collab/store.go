package collab

import (
	"sort"
	"sync"
)

// User identifies a participant as reported by the client
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Member is a user present in a room together with their open sockets
type Member struct {
	User
	Sockets []string `json:"sockets"`
}

type presence struct {
	user    User
	sockets map[string]bool
}

type room struct {
	mu sync.Mutex
	// order keeps presence in join order.
	order       []string
	users       map[string]*presence
	subscribers map[string]bool
}

func newRoom() *room {
	return &room{
		users:       make(map[string]*presence),
		subscribers: make(map[string]bool),
	}
}

func (r *room) empty() bool {
	return len(r.users) == 0 && len(r.subscribers) == 0
}

// members snapshots presence; callers hold r.mu
func (r *room) members() []Member {
	out := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		p := r.users[id]
		sockets := make([]string, 0, len(p.sockets))
		for s := range p.sockets {
			sockets = append(sockets, s)
		}
		sort.Strings(sockets)
		out = append(out, Member{User: p.user, Sockets: sockets})
	}
	return out
}

// removeSocket drops socketID from userID; callers hold r.mu
func (r *room) removeSocket(userID, socketID string) bool {
	p, ok := r.users[userID]
	if !ok || !p.sockets[socketID] {
		return false
	}
	delete(p.sockets, socketID)
	if len(p.sockets) == 0 {
		delete(r.users, userID)
		for i, id := range r.order {
			if id == userID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	return true
}

// Store holds presence for every room. The room map has its own lock and
// each room is guarded by its own mutex, always acquired after the map lock.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{rooms: make(map[string]*room)}
}

// lockRoom returns roomID locked, creating it when create is set
func (s *Store) lockRoom(roomID string, create bool) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		if !create {
			return nil
		}
		r = newRoom()
		s.rooms[roomID] = r
	}
	r.mu.Lock()
	return r
}

// Join subscribes socketID to roomID and records user as present through it
func (s *Store) Join(roomID string, user User, socketID string) []Member {
	r := s.lockRoom(roomID, true)
	defer r.mu.Unlock()

	r.subscribers[socketID] = true
	p, ok := r.users[user.ID]
	if !ok {
		p = &presence{user: user, sockets: make(map[string]bool)}
		r.users[user.ID] = p
		r.order = append(r.order, user.ID)
	}
	p.sockets[socketID] = true
	return r.members()
}

// Leave unsubscribes socketID from roomID and removes it from userID's sockets.
// changed is false when the user was not present through that socket.
func (s *Store) Leave(roomID, userID, socketID string) (members []Member, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subscribers, socketID)
	changed = r.removeSocket(userID, socketID)
	members = r.members()
	if r.empty() {
		delete(s.rooms, roomID)
	}
	return members, changed
}

// DetachSocket removes socketID from every room and returns the new presence
// of each room whose presence changed
func (s *Store) DetachSocket(socketID string) map[string][]Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := make(map[string][]Member)
	for roomID, r := range s.rooms {
		r.mu.Lock()
		delete(r.subscribers, socketID)
		touched := false
		for userID := range r.users {
			if r.removeSocket(userID, socketID) {
				touched = true
			}
		}
		if touched {
			changed[roomID] = r.members()
		}
		if r.empty() {
			delete(s.rooms, roomID)
		}
		r.mu.Unlock()
	}
	return changed
}

// Members returns the presence of roomID in join order
func (s *Store) Members(roomID string) []Member {
	r := s.lockRoom(roomID, false)
	if r == nil {
		return []Member{}
	}
	defer r.mu.Unlock()
	return r.members()
}

// Subscribers returns the sockets that receive roomID broadcasts
func (s *Store) Subscribers(roomID string) []string {
	r := s.lockRoom(roomID, false)
	if r == nil {
		return nil
	}
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.subscribers))
	for id := range r.subscribers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RoomCount returns the number of live rooms
func (s *Store) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
