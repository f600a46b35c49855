package realtime

import "github.com/cwrk-planet/chat-service/internal/domain"

const (
	KindNewMessage  = "newMessage"
	KindReadReceipt = "messagesRead"
)

// Event is what the broker fans out. The set of implementations is closed:
// NewMessage and ReadReceipt.
type Event interface {
	Kind() string
	isEvent()
}

type NewMessage struct {
	Message domain.Message
}

func (NewMessage) Kind() string { return KindNewMessage }
func (NewMessage) isEvent()     {}

type ReadReceipt struct {
	RoomID     string
	ReaderID   string
	MessageIDs []string
}

func (ReadReceipt) Kind() string { return KindReadReceipt }
func (ReadReceipt) isEvent()     {}
