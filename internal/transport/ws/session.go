package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/cwrk-planet/chat-service/internal/realtime"
)

// session is one websocket connection. Everything written to the socket goes
// through send and is written by the write loop only.
type session struct {
	id      string
	userID  string
	conn    *websocket.Conn
	send    chan Message
	closed  chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func newSession(conn *websocket.Conn, userID string, queue int, limiter *rate.Limiter) *session {
	return &session{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		send:    make(chan Message, queue),
		closed:  make(chan struct{}),
		limiter: limiter,
	}
}

func (s *session) ID() string     { return s.id }
func (s *session) UserID() string { return s.userID }

func (s *session) Deliver(ev realtime.Event) bool {
	msg, ok := eventFrame(ev)
	if !ok {
		return true
	}
	return s.enqueue(msg)
}

// enqueue never blocks; false means the queue is full or the session is gone.
func (s *session) enqueue(msg Message) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
