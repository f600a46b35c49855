package relay

import (
	"sync"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"
)

type localSink struct {
	mu     sync.Mutex
	rooms  []string
	events []realtime.Event
}

func (s *localSink) PublishLocal(roomID string, ev realtime.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append(s.rooms, roomID)
	s.events = append(s.events, ev)
	return 1
}

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2025, 5, 1, 12, 0, 0, 123000, time.UTC)
	msg := domain.Message{
		ID: "m1", SenderID: "a", ReceiverID: "b", RoomID: "a-b",
		Content: "hi", Type: domain.TypeText, Timestamp: at,
	}

	data, err := encode("node-1", "a-b", realtime.NewMessage{Message: msg})
	require.NoError(t, err)
	env, ev, err := decode(data)
	require.NoError(t, err)
	require.Equal(t, "node-1", env.Origin)
	require.Equal(t, realtime.NewMessage{Message: msg}, ev)

	rr := realtime.ReadReceipt{RoomID: "a-b", ReaderID: "b", MessageIDs: []string{"m1"}}
	data, err = encode("node-1", "a-b", rr)
	require.NoError(t, err)
	_, ev, err = decode(data)
	require.NoError(t, err)
	require.Equal(t, rr, ev)

	_, _, err = decode([]byte(`{"roomId":"a-b","kind":"bogus"}`))
	require.Error(t, err)
	_, _, err = decode([]byte(`not json`))
	require.Error(t, err)
}

func TestHandle_IgnoresOwnOrigin(t *testing.T) {
	sink := &localSink{}
	r := NewNATS(nil, "chat.rooms", "node-1", sink, nil)

	own, err := encode("node-1", "a-b", realtime.ReadReceipt{RoomID: "a-b", ReaderID: "b"})
	require.NoError(t, err)
	remote, err := encode("node-2", "a-b", realtime.ReadReceipt{RoomID: "a-b", ReaderID: "b"})
	require.NoError(t, err)

	r.handle(&nats.Msg{Subject: "chat.rooms.a-b", Data: own})
	r.handle(&nats.Msg{Subject: "chat.rooms.a-b", Data: remote})
	r.handle(&nats.Msg{Subject: "chat.rooms.a-b", Data: []byte("{")})

	require.Equal(t, []string{"a-b"}, sink.rooms)
}

func TestSubjectFor(t *testing.T) {
	require.Equal(t, "chat.rooms.a-b", subjectFor("chat.rooms", "a-b"))
	s := subjectFor("chat.rooms", "a.b-c")
	require.NotContains(t, s[len("chat.rooms."):], ".")
	require.Equal(t, "chat.rooms.~", s[:len("chat.rooms.~")])
}

func runServer(t *testing.T) string {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	srv := natstest.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func (s *localSink) snapshot() ([]string, []realtime.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rooms...), append([]realtime.Event(nil), s.events...)
}

func startRelay(t *testing.T, url, origin string, sink *localSink) *NATS {
	t.Helper()
	nc, err := Connect(url, origin)
	require.NoError(t, err)
	r := NewNATS(nc, "chat.rooms", origin, sink, nil)
	require.NoError(t, r.Start())
	require.NoError(t, nc.Flush())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRelay_ForwardsBetweenInstances(t *testing.T) {
	url := runServer(t)
	sink1, sink2 := &localSink{}, &localSink{}
	r1 := startRelay(t, url, "node-1", sink1)
	startRelay(t, url, "node-2", sink2)

	msg := domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b.c", RoomID: domain.RoomIDFor("a", "b.c"), Content: "hi"}
	r1.Forward(msg.RoomID, realtime.NewMessage{Message: msg})
	r1.Forward("a-b", realtime.ReadReceipt{RoomID: "a-b", ReaderID: "b", MessageIDs: []string{"m0"}})

	require.Eventually(t, func() bool {
		rooms, _ := sink2.snapshot()
		return len(rooms) == 2
	}, 3*time.Second, 10*time.Millisecond)

	rooms, events := sink2.snapshot()
	require.Equal(t, []string{msg.RoomID, "a-b"}, rooms)
	got, ok := events[0].(realtime.NewMessage)
	require.True(t, ok)
	require.Equal(t, "hi", got.Message.Content)

	own, _ := sink1.snapshot()
	require.Empty(t, own, "an instance ignores its own events")
}

func TestRelay_CloseDrainsConnection(t *testing.T) {
	url := runServer(t)
	nc, err := Connect(url, "node-1")
	require.NoError(t, err)
	r := NewNATS(nc, "chat.rooms", "node-1", &localSink{}, nil)
	require.NoError(t, r.Start())

	require.NoError(t, r.Close())
	require.Eventually(t, nc.IsClosed, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Close())
}
