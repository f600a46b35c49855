package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/internal/transport/dto"
)

// Client -> server frame types.
const (
	TypeJoinRoom    = "join-room"
	TypeLeaveRoom   = "leave-room"
	TypeSendMessage = "send-message"
	TypeMarkRead    = "mark-read"
)

// Server -> client frame types.
const (
	TypeNewMessage   = realtime.KindNewMessage
	TypeMessagesRead = realtime.KindReadReceipt
	TypeAck          = "ack"
	TypeError        = "error"
)

// Inbound is a client frame. Ref is echoed back in the ack or error so the
// client can match responses to requests.
type Inbound struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type AckPayload struct {
	Ref       string `json:"ref,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Updated   *int   `json:"updated,omitempty"`
}

type ErrorPayload struct {
	Ref    string            `json:"ref,omitempty"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func eventFrame(ev realtime.Event) (Message, bool) {
	switch e := ev.(type) {
	case realtime.NewMessage:
		return Message{Type: TypeNewMessage, Payload: dto.FromMessage(e.Message)}, true
	case realtime.ReadReceipt:
		return Message{Type: TypeMessagesRead, Payload: dto.ReadReceipt{
			RoomID:     e.RoomID,
			ReaderID:   e.ReaderID,
			MessageIDs: e.MessageIDs,
		}}, true
	}
	return Message{}, false
}
