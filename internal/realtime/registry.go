package realtime

import "sync"

// Session is one live connection tagged with the user it authenticated as.
type Session interface {
	ID() string
	UserID() string
	// Deliver enqueues ev without blocking; false means the outbound queue is full.
	Deliver(ev Event) bool
	Close() error
}

type room struct {
	mu      sync.Mutex
	members map[string]Session
}

func (r *room) snapshot() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s)
	}
	return out
}

// Registry maps room ids to the sessions currently joined. State is process
// local and rebuilt by clients re-joining after reconnect.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	sessions map[string]map[string]struct{} // session id -> room ids
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*room),
		sessions: make(map[string]map[string]struct{}),
	}
}

// Join is idempotent.
func (g *Registry) Join(roomID string, s Session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[string]Session)}
		g.rooms[roomID] = rm
	}
	rm.mu.Lock()
	rm.members[s.ID()] = s
	rm.mu.Unlock()

	joined, ok := g.sessions[s.ID()]
	if !ok {
		joined = make(map[string]struct{})
		g.sessions[s.ID()] = joined
	}
	joined[roomID] = struct{}{}
}

// Leave is idempotent; the room is dropped once its last member leaves.
func (g *Registry) Leave(roomID string, s Session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.leaveLocked(roomID, s.ID())
}

// LeaveAll removes s from every room it joined and returns those room ids.
func (g *Registry) LeaveAll(s Session) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	joined := g.sessions[s.ID()]
	left := make([]string, 0, len(joined))
	for roomID := range joined {
		left = append(left, roomID)
		g.leaveLocked(roomID, s.ID())
	}
	return left
}

func (g *Registry) leaveLocked(roomID, sessionID string) {
	if joined, ok := g.sessions[sessionID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(g.sessions, sessionID)
		}
	}

	rm, ok := g.rooms[roomID]
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.members, sessionID)
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if empty {
		delete(g.rooms, roomID)
	}
}

// MembersOf returns a snapshot; membership may change right after it returns.
func (g *Registry) MembersOf(roomID string) []Session {
	g.mu.RLock()
	rm, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return nil
	}
	return rm.snapshot()
}

// IsMember reports whether s currently belongs to roomID.
func (g *Registry) IsMember(roomID string, s Session) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.sessions[s.ID()][roomID]
	return ok
}

// Stats returns the number of live rooms and joined sessions.
func (g *Registry) Stats() (rooms, sessions int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms), len(g.sessions)
}
