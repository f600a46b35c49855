package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/transport/dto"
	"github.com/cwrk-planet/chat-service/internal/transport/http/httputil"
)

type ChatSvc interface {
	Send(ctx context.Context, callerID string, in service.SendInput) (*domain.Message, error)
	MarkRead(ctx context.Context, callerID string, ids []string, roomID string) (int, error)
	CanJoin(userID, roomID string) bool
}

type Options struct {
	OutboundQueue   int
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	RatePerSecond   float64
	Burst           int
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

func (o *Options) defaults() {
	if o.OutboundQueue <= 0 {
		o.OutboundQueue = 64
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 10
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(*http.Request) bool { return true }
	}
}

const opTimeout = 10 * time.Second

type Server struct {
	upgrader websocket.Upgrader
	auth     auth.Authenticator
	chatSvc  ChatSvc
	registry *realtime.Registry
	opts     Options
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func NewServer(a auth.Authenticator, chat ChatSvc, registry *realtime.Registry, opts Options, log *slog.Logger) *Server {
	opts.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		auth:     a,
		chatSvc:  chat,
		registry: registry,
		opts:     opts,
		log:      log.With("component", "ws"),
		sessions: make(map[*session]struct{}),
	}
}

// ServeHTTP handles GET /ws?access_token=...[&user_id=...]. The bearer header
// is accepted as well for non-browser clients.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := strings.TrimSpace(q.Get("access_token"))
	if token == "" {
		token = auth.BearerToken(r.Header.Get("Authorization"))
	}
	userID, err := s.auth.Authenticate(r.Context(), auth.Credentials{
		Token:  token,
		UserID: strings.TrimSpace(q.Get("user_id")),
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}

	sess := newSession(conn, userID, s.opts.OutboundQueue,
		rate.NewLimiter(rate.Limit(s.opts.RatePerSecond), s.opts.Burst))
	s.track(sess, true)
	s.log.Info("ws connected", "session", sess.id, "user", userID)

	go s.writeLoop(sess)
	s.readLoop(r.Context(), sess)

	left := s.registry.LeaveAll(sess)
	_ = sess.Close()
	s.track(sess, false)
	s.log.Info("ws disconnected", "session", sess.id, "user", userID, "rooms", len(left))
}

// Shutdown closes every open session.
func (s *Server) Shutdown() {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		_ = sess.Close()
	}
}

func (s *Server) track(sess *session, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.sessions[sess] = struct{}{}
	} else {
		delete(s.sessions, sess)
	}
}

func (s *Server) readLoop(ctx context.Context, sess *session) {
	pongWait := 2 * s.opts.PingInterval
	sess.conn.SetReadLimit(s.opts.MaxMessageBytes)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws read failed", "session", sess.id, "err", err)
			}
			return
		}
		_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.reply(sess, errorFrame("", domain.Invalid("frame", "invalid json")))
			continue
		}
		if !sess.limiter.Allow() {
			s.reply(sess, Message{Type: TypeError, Payload: ErrorPayload{Ref: in.Ref, Error: "rate limited"}})
			continue
		}
		s.dispatch(ctx, sess, in)
	}
}

func (s *Server) dispatch(ctx context.Context, sess *session, in Inbound) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	switch in.Type {
	case TypeJoinRoom, TypeLeaveRoom:
		var p dto.RoomRequest
		if err := decodePayload(in.Payload, &p); err != nil {
			s.reply(sess, errorFrame(in.Ref, err))
			return
		}
		if in.Type == TypeLeaveRoom {
			s.registry.Leave(p.RoomID, sess)
			s.reply(sess, ackFrame(AckPayload{Ref: in.Ref, RoomID: p.RoomID}))
			return
		}
		if !s.chatSvc.CanJoin(sess.userID, p.RoomID) {
			s.reply(sess, errorFrame(in.Ref, domain.ErrForbidden))
			return
		}
		s.registry.Join(p.RoomID, sess)
		s.reply(sess, ackFrame(AckPayload{Ref: in.Ref, RoomID: p.RoomID}))

	case TypeSendMessage:
		var p dto.SendMessageRequest
		if err := decodePayload(in.Payload, &p); err != nil {
			s.reply(sess, errorFrame(in.Ref, err))
			return
		}
		msg, err := s.chatSvc.Send(ctx, sess.userID, p.Input())
		if err != nil {
			s.reply(sess, errorFrame(in.Ref, err))
			return
		}
		s.reply(sess, ackFrame(AckPayload{Ref: in.Ref, MessageID: msg.ID, RoomID: msg.RoomID}))

	case TypeMarkRead:
		var p dto.MarkReadRequest
		if err := decodePayload(in.Payload, &p); err != nil {
			s.reply(sess, errorFrame(in.Ref, err))
			return
		}
		n, err := s.chatSvc.MarkRead(ctx, sess.userID, p.MessageIDs, p.Room())
		if err != nil {
			s.reply(sess, errorFrame(in.Ref, err))
			return
		}
		s.reply(sess, ackFrame(AckPayload{Ref: in.Ref, RoomID: p.Room(), Updated: &n}))

	default:
		s.reply(sess, errorFrame(in.Ref, domain.Invalid("type", "unknown frame type "+in.Type)))
	}
}

// reply queues a response for the caller's own session; a full queue
// disconnects it like any other slow consumer.
func (s *Server) reply(sess *session, msg Message) {
	if !sess.enqueue(msg) {
		s.log.Warn("ws outbound queue full, closing", "session", sess.id, "user", sess.userID)
		_ = sess.Close()
	}
}

func (s *Server) writeLoop(sess *session) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := sess.conn.WriteJSON(msg); err != nil {
				s.log.Debug("ws write failed", "session", sess.id, "err", err)
				_ = sess.Close()
				return
			}
		case <-ticker.C:
			if err := sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				_ = sess.Close()
				return
			}
		case <-sess.closed:
			return
		}
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return domain.Invalid("payload", "payload is required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("payload", "invalid json: "+err.Error())
	}
	return dto.Validate(dst)
}

func ackFrame(p AckPayload) Message {
	return Message{Type: TypeAck, Payload: p}
}

func errorFrame(ref string, err error) Message {
	p := ErrorPayload{Ref: ref}
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		p.Error = domain.ErrValidation.Error()
		p.Fields = ve.Fields
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrUnauthenticated):
		p.Error = err.Error()
	default:
		p.Error = "internal error"
	}
	return Message{Type: TypeError, Payload: p}
}
