package realtime

import (
	"sync"
	"sync/atomic"
)

type fakeSession struct {
	id     string
	user   string
	mu     sync.Mutex
	events []Event
	limit  int
	closed atomic.Bool
	done   chan struct{}
}

func newFake(id, user string, limit int) *fakeSession {
	return &fakeSession{id: id, user: user, limit: limit, done: make(chan struct{})}
}

func (f *fakeSession) ID() string     { return f.id }
func (f *fakeSession) UserID() string { return f.user }

func (f *fakeSession) Deliver(ev Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limit > 0 && len(f.events) >= f.limit {
		return false
	}
	f.events = append(f.events, ev)
	return true
}

func (f *fakeSession) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		close(f.done)
	}
	return nil
}

func (f *fakeSession) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}
