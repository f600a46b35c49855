package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

func msg(id string) Event {
	return NewMessage{Message: domain.Message{ID: id, RoomID: "a-b", Content: id}}
}

func ids(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		if nm, ok := ev.(NewMessage); ok {
			out = append(out, nm.Message.ID)
		}
	}
	return out
}

func TestBroker_PublishToMembersOnly(t *testing.T) {
	reg := NewRegistry()
	b := NewBroker(reg, nil)

	a := newFake("sa", "a", 0)
	bb := newFake("sb", "b", 0)
	other := newFake("so", "c", 0)
	reg.Join("a-b", a)
	reg.Join("a-b", bb)
	reg.Join("a-c", other)

	n := b.Publish("a-b", msg("m1"))
	require.Equal(t, 2, n)
	require.Equal(t, []string{"m1"}, ids(a.received()))
	require.Equal(t, []string{"m1"}, ids(bb.received()))
	require.Empty(t, other.received())
}

func TestBroker_PublishEmptyRoom(t *testing.T) {
	b := NewBroker(NewRegistry(), nil)
	require.Zero(t, b.Publish("ghost", msg("m1")))
}

func TestBroker_OrderPreservedPerSession(t *testing.T) {
	reg := NewRegistry()
	b := NewBroker(reg, nil)
	s := newFake("s", "a", 0)
	reg.Join("a-b", s)

	want := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, id := range want {
		b.Publish("a-b", msg(id))
	}
	require.Equal(t, want, ids(s.received()))
}

func TestBroker_OverflowDisconnectsOnlySlowSession(t *testing.T) {
	reg := NewRegistry()
	b := NewBroker(reg, nil)

	slow := newFake("slow", "a", 1)
	fast := newFake("fast", "b", 0)
	reg.Join("a-b", slow)
	reg.Join("a-b", fast)

	require.Equal(t, 2, b.Publish("a-b", msg("m1")))
	require.Equal(t, 1, b.Publish("a-b", msg("m2")))
	require.Equal(t, 1, b.Publish("a-b", msg("m3")))

	select {
	case <-slow.done:
	case <-time.After(time.Second):
		t.Fatal("slow session was not closed")
	}
	require.False(t, reg.IsMember("a-b", slow))
	require.Equal(t, []string{"m1"}, ids(slow.received()))
	require.Equal(t, []string{"m1", "m2", "m3"}, ids(fast.received()))
	require.False(t, fast.closed.Load())
}

func TestBroker_LateJoinerMissesEarlierEvents(t *testing.T) {
	reg := NewRegistry()
	b := NewBroker(reg, nil)
	early := newFake("e", "a", 0)
	reg.Join("a-b", early)

	b.Publish("a-b", msg("m1"))
	late := newFake("l", "b", 0)
	reg.Join("a-b", late)
	b.Publish("a-b", msg("m2"))

	require.Equal(t, []string{"m1", "m2"}, ids(early.received()))
	require.Equal(t, []string{"m2"}, ids(late.received()))
}

func TestBroker_ConcurrentPublishersKeepSingleOrder(t *testing.T) {
	reg := NewRegistry()
	b := NewBroker(reg, nil)
	s1 := newFake("s1", "a", 0)
	s2 := newFake("s2", "b", 0)
	reg.Join("a-b", s1)
	reg.Join("a-b", s2)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Publish("a-b", msg(string(rune('A'+i))))
		}(i)
	}
	wg.Wait()

	require.Len(t, s1.received(), 20)
	require.Equal(t, ids(s1.received()), ids(s2.received()))
}

type recordingRelay struct {
	mu    sync.Mutex
	rooms []string
}

func (r *recordingRelay) Forward(roomID string, _ Event) {
	r.mu.Lock()
	r.rooms = append(r.rooms, roomID)
	r.mu.Unlock()
}

func TestBroker_RelayGetsPublishButNotPublishLocal(t *testing.T) {
	reg := NewRegistry()
	b := NewBroker(reg, nil)
	rel := &recordingRelay{}
	b.SetRelay(rel)

	s := newFake("s", "a", 0)
	reg.Join("a-b", s)

	b.Publish("a-b", msg("m1"))
	b.PublishLocal("a-b", ReadReceipt{RoomID: "a-b", ReaderID: "b", MessageIDs: []string{"m1"}})
	b.Publish("x-y", msg("m2"))

	require.Equal(t, []string{"a-b", "x-y"}, rel.rooms)
	got := s.received()
	require.Len(t, got, 2)
	require.Equal(t, KindReadReceipt, got[1].Kind())
}

// gatedSession blocks its first delivery until gate is closed.
type gatedSession struct {
	*fakeSession
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gatedSession) Deliver(ev Event) bool {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.gate
	}
	return g.fakeSession.Deliver(ev)
}

func TestBroker_OrderSurvivesRoomRecreation(t *testing.T) {
	reg := NewRegistry()
	b := NewBroker(reg, nil)
	s := &gatedSession{fakeSession: newFake("s1", "a", 0), gate: make(chan struct{}), entered: make(chan struct{})}
	reg.Join("a-b", s)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.Publish("a-b", msg("m1"))
	}()
	<-s.entered

	// the room empties and is created again while m1 is still being delivered
	reg.Leave("a-b", s)
	reg.Join("a-b", s)

	go func() {
		defer wg.Done()
		b.Publish("a-b", msg("m2"))
	}()
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, s.received(), "m2 must wait for m1")

	close(s.gate)
	wg.Wait()
	require.Equal(t, []string{"m1", "m2"}, ids(s.received()))

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Empty(t, b.locks)
}
