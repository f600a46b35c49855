// Package dto holds the JSON shapes shared by the HTTP API, the websocket
// frames and the cross-instance relay.
package dto

import (
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type Attachment struct {
	URL  string `json:"url" validate:"required,max=2048"`
	Type string `json:"type" validate:"required,max=128"`
	Name string `json:"name" validate:"required,max=256"`
	Size *int64 `json:"size,omitempty" validate:"omitempty,gte=0"`
}

type Message struct {
	ID          string            `json:"id"`
	SenderID    string            `json:"sender"`
	ReceiverID  string            `json:"receiver"`
	RoomID      string            `json:"roomId"`
	Content     string            `json:"content"`
	Attachments []Attachment      `json:"attachments"`
	Type        string            `json:"messageType"`
	IsUrgent    bool              `json:"isUrgent"`
	IsRead      bool              `json:"isRead"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func FromMessage(m domain.Message) Message {
	out := Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		RoomID:      m.RoomID,
		Content:     m.Content,
		Attachments: FromAttachments(m.Attachments),
		Type:        string(m.Type),
		IsUrgent:    m.IsUrgent,
		IsRead:      m.IsRead,
		Timestamp:   m.Timestamp,
		Metadata:    m.Metadata,
	}
	return out
}

func (m Message) ToDomain() domain.Message {
	return domain.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		RoomID:      m.RoomID,
		Content:     m.Content,
		Attachments: ToAttachments(m.Attachments),
		Type:        domain.MessageType(m.Type),
		IsUrgent:    m.IsUrgent,
		IsRead:      m.IsRead,
		Timestamp:   m.Timestamp,
		Metadata:    m.Metadata,
	}
}

func FromMessages(ms []domain.Message) []Message {
	out := make([]Message, 0, len(ms))
	for _, m := range ms {
		out = append(out, FromMessage(m))
	}
	return out
}

// FromAttachments never returns nil so the field encodes as [].
func FromAttachments(as []domain.Attachment) []Attachment {
	out := make([]Attachment, 0, len(as))
	for _, a := range as {
		out = append(out, Attachment(a))
	}
	return out
}

func ToAttachments(as []Attachment) []domain.Attachment {
	if len(as) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(as))
	for _, a := range as {
		out = append(out, domain.Attachment(a))
	}
	return out
}

type Profile struct {
	ID              string  `json:"_id"`
	Name            string  `json:"name"`
	Role            string  `json:"role"`
	Specialty       *string `json:"specialty,omitempty"`
	ProfileImageURL *string `json:"profileImage,omitempty"`
}

type ConversationSummary struct {
	Participant Profile `json:"participant"`
	LastMessage Message `json:"lastMessage"`
	UnreadCount int     `json:"unreadCount"`
}

func FromSummaries(ss []domain.ConversationSummary) []ConversationSummary {
	out := make([]ConversationSummary, 0, len(ss))
	for _, s := range ss {
		out = append(out, ConversationSummary{
			Participant: Profile{
				ID:              s.Participant.ID,
				Name:            s.Participant.DisplayName,
				Role:            string(s.Participant.Role),
				Specialty:       s.Participant.Specialty,
				ProfileImageURL: s.Participant.ProfileImageURL,
			},
			LastMessage: FromMessage(s.LastMessage),
			UnreadCount: s.UnreadCount,
		})
	}
	return out
}

type ReadReceipt struct {
	RoomID     string   `json:"roomId"`
	ReaderID   string   `json:"readerId"`
	MessageIDs []string `json:"messageIds"`
}
