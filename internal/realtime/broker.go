package realtime

import (
	"log/slog"
	"sync"
)

// Relay forwards locally published events to other instances.
type Relay interface {
	Forward(roomID string, ev Event)
}

// Broker fans events out to the sessions joined to a room. Delivery is at most
// once per connected session; there is no queue for sessions that are gone,
// clients re-read history from the message store after reconnecting.
type Broker struct {
	reg   *Registry
	log   *slog.Logger
	relay Relay

	// Publish locks outlive room membership: a room that empties and refills
	// during a fan-out still serializes against the publish in flight.
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewBroker(reg *Registry, log *slog.Logger) *Broker {
	if log == nil {
		log = slog.Default()
	}
	return &Broker{reg: reg, log: log, locks: make(map[string]*roomLock)}
}

// SetRelay must be called before the broker is shared between goroutines.
func (b *Broker) SetRelay(r Relay) { b.relay = r }

// Publish delivers ev to the room's current members and hands it to the relay.
// It returns how many sessions accepted the event.
func (b *Broker) Publish(roomID string, ev Event) int {
	n := b.PublishLocal(roomID, ev)
	if b.relay != nil {
		b.relay.Forward(roomID, ev)
	}
	return n
}

// PublishLocal delivers ev to this instance only. Publishes to the same room
// never interleave; a session whose queue is full is disconnected instead of
// stalling the others.
func (b *Broker) PublishLocal(roomID string, ev Event) int {
	unlock := b.lockRoom(roomID)
	defer unlock()

	members := b.reg.MembersOf(roomID)
	if len(members) == 0 {
		return 0
	}

	delivered := 0
	for _, s := range members {
		if s.Deliver(ev) {
			delivered++
			continue
		}
		b.log.Warn("realtime: outbound queue full, dropping session",
			"room", roomID, "session", s.ID(), "user", s.UserID(), "event", ev.Kind())
		b.evict(s)
	}

	b.log.Debug("realtime: published",
		"room", roomID, "event", ev.Kind(), "delivered", delivered)
	return delivered
}

// lockRoom takes the room's publish lock and returns its release. The lock is
// dropped from the map once nobody holds or waits for it.
func (b *Broker) lockRoom(roomID string) func() {
	b.mu.Lock()
	l, ok := b.locks[roomID]
	if !ok {
		l = &roomLock{}
		b.locks[roomID] = l
	}
	l.refs++
	b.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, roomID)
		}
		b.mu.Unlock()
	}
}

func (b *Broker) evict(s Session) {
	b.reg.LeaveAll(s)
	go func() {
		if err := s.Close(); err != nil {
			b.log.Debug("realtime: close evicted session", "session", s.ID(), "err", err)
		}
	}()
}
