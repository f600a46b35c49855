package badgerstore

import (
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type attachmentRecord struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size *int64 `json:"size,omitempty"`
}

type record struct {
	ID          string             `json:"id"`
	SenderID    string             `json:"sender"`
	ReceiverID  string             `json:"receiver"`
	RoomID      string             `json:"room"`
	Content     string             `json:"content"`
	Attachments []attachmentRecord `json:"attachments,omitempty"`
	Type        string             `json:"type"`
	IsUrgent    bool               `json:"urgent"`
	IsRead      bool               `json:"read"`
	AtMicro     int64              `json:"at"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

func fromMessage(m *domain.Message) record {
	r := record{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		RoomID:     m.RoomID,
		Content:    m.Content,
		Type:       string(m.Type),
		IsUrgent:   m.IsUrgent,
		IsRead:     m.IsRead,
		AtMicro:    m.Timestamp.UnixMicro(),
		Metadata:   m.Metadata,
	}
	for _, a := range m.Attachments {
		r.Attachments = append(r.Attachments, attachmentRecord(a))
	}
	return r
}

func (r record) toMessage() domain.Message {
	m := domain.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		RoomID:     r.RoomID,
		Content:    r.Content,
		Type:       domain.MessageType(r.Type),
		IsUrgent:   r.IsUrgent,
		IsRead:     r.IsRead,
		Timestamp:  time.UnixMicro(r.AtMicro).UTC(),
		Metadata:   r.Metadata,
	}
	for _, a := range r.Attachments {
		m.Attachments = append(m.Attachments, domain.Attachment(a))
	}
	return m
}
