package relay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/internal/transport/dto"
)

// LocalPublisher delivers to this instance's sessions without relaying again.
type LocalPublisher interface {
	PublishLocal(roomID string, ev realtime.Event) int
}

type envelope struct {
	Origin  string           `json:"origin"`
	RoomID  string           `json:"roomId"`
	Kind    string           `json:"kind"`
	Message *dto.Message     `json:"message,omitempty"`
	Receipt *dto.ReadReceipt `json:"receipt,omitempty"`
}

// NATS mirrors broker events between instances. Every instance publishes the
// events of its own clients to <prefix>.<room> and replays everything it
// receives from other origins into its local broker.
type NATS struct {
	nc     *nats.Conn
	prefix string
	origin string
	local  LocalPublisher
	log    *slog.Logger
	sub    *nats.Subscription
}

func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

func NewNATS(nc *nats.Conn, prefix, origin string, local LocalPublisher, log *slog.Logger) *NATS {
	if log == nil {
		log = slog.Default()
	}
	return &NATS{
		nc:     nc,
		prefix: prefix,
		origin: origin,
		local:  local,
		log:    log.With("component", "relay"),
	}
}

func (r *NATS) Start() error {
	sub, err := r.nc.Subscribe(r.prefix+".*", r.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s.*: %w", r.prefix, err)
	}
	r.sub = sub
	return nil
}

// Forward is called by the broker after local fan-out. Errors are logged;
// remote delivery is best effort like local delivery.
func (r *NATS) Forward(roomID string, ev realtime.Event) {
	data, err := encode(r.origin, roomID, ev)
	if err != nil {
		r.log.Error("relay: encode", "room", roomID, "err", err)
		return
	}
	if err := r.nc.Publish(subjectFor(r.prefix, roomID), data); err != nil {
		r.log.Warn("relay: publish", "room", roomID, "err", err)
	}
}

// Close drains the subscription and pending publishes, then closes the
// connection. The relay owns nc.
func (r *NATS) Close() error {
	if r.nc == nil || r.nc.IsClosed() {
		return nil
	}
	return r.nc.Drain()
}

func (r *NATS) handle(msg *nats.Msg) {
	env, ev, err := decode(msg.Data)
	if err != nil {
		r.log.Warn("relay: dropping malformed event", "subject", msg.Subject, "err", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.local.PublishLocal(env.RoomID, ev)
}

func encode(origin, roomID string, ev realtime.Event) ([]byte, error) {
	env := envelope{Origin: origin, RoomID: roomID, Kind: ev.Kind()}
	switch e := ev.(type) {
	case realtime.NewMessage:
		m := dto.FromMessage(e.Message)
		env.Message = &m
	case realtime.ReadReceipt:
		env.Receipt = &dto.ReadReceipt{RoomID: e.RoomID, ReaderID: e.ReaderID, MessageIDs: e.MessageIDs}
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}
	return json.Marshal(env)
}

func decode(data []byte) (envelope, realtime.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, nil, err
	}
	if env.RoomID == "" {
		return env, nil, errors.New("missing roomId")
	}
	switch {
	case env.Kind == realtime.KindNewMessage && env.Message != nil:
		return env, realtime.NewMessage{Message: env.Message.ToDomain()}, nil
	case env.Kind == realtime.KindReadReceipt && env.Receipt != nil:
		return env, realtime.ReadReceipt{
			RoomID:     env.Receipt.RoomID,
			ReaderID:   env.Receipt.ReaderID,
			MessageIDs: env.Receipt.MessageIDs,
		}, nil
	}
	return env, nil, fmt.Errorf("unsupported kind %q", env.Kind)
}

// subjectFor keeps the room id readable when it is a valid subject token and
// encodes it otherwise. The payload carries the real id either way.
func subjectFor(prefix, roomID string) string {
	if roomID != "" && !strings.ContainsAny(roomID, ".*> \t\r\n") {
		return prefix + "." + roomID
	}
	return prefix + ".~" + base64.RawURLEncoding.EncodeToString([]byte(roomID))
}
