package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxContentLength = 5000

type MessageType string

const (
	TypeText         MessageType = "text"
	TypeImage        MessageType = "image"
	TypeFile         MessageType = "file"
	TypePrescription MessageType = "prescription"
	TypeReport       MessageType = "report"
)

func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypePrescription, TypeReport:
		return true
	}
	return false
}

// Attachment references an externally hosted blob.
type Attachment struct {
	URL  string
	Type string
	Name string
	Size *int64
}

type Message struct {
	ID          string
	SenderID    string
	ReceiverID  string
	RoomID      string
	Content     string
	Attachments []Attachment
	Type        MessageType
	IsUrgent    bool
	IsRead      bool
	Timestamp   time.Time
	Metadata    map[string]string
}

// Prepare trims content, applies defaults and assigns ID/Timestamp when absent.
// It does not validate; stores call Validate right after.
func (m *Message) Prepare(now time.Time) error {
	m.Content = strings.TrimSpace(m.Content)
	if m.Type == "" {
		m.Type = TypeText
	}
	if m.RoomID == "" && m.SenderID != "" && m.ReceiverID != "" {
		m.RoomID = RoomIDFor(m.SenderID, m.ReceiverID)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	// postgres keeps microseconds; normalize so every backend round-trips equal values
	m.Timestamp = m.Timestamp.UTC().Truncate(time.Microsecond)
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id.String()
	}
	return nil
}

// Validate checks every invariant a message must hold before it is persisted.
func (m *Message) Validate() error {
	ve := &ValidationError{}

	if strings.TrimSpace(m.SenderID) == "" {
		ve.add("sender", "sender id is required")
	}
	if strings.TrimSpace(m.ReceiverID) == "" {
		ve.add("receiver", "receiver id is required")
	}
	if m.SenderID != "" && m.SenderID == m.ReceiverID {
		ve.add("receiver", "receiver must differ from sender")
	}

	content := strings.TrimSpace(m.Content)
	switch {
	case content == "":
		ve.add("content", "message content cannot be empty")
	case utf8.RuneCountInString(content) > MaxContentLength:
		ve.add("content", "message content cannot exceed 5000 characters")
	}

	switch {
	case m.RoomID == "":
		ve.add("roomId", "room id is required")
	case m.SenderID != "" && m.ReceiverID != "" && m.RoomID != RoomIDFor(m.SenderID, m.ReceiverID):
		ve.add("roomId", "room id does not match the sender/receiver pair")
	}

	if m.Type != "" && !m.Type.Valid() {
		ve.add("messageType", "unknown message type "+string(m.Type))
	}

	for _, a := range m.Attachments {
		if strings.TrimSpace(a.URL) == "" || strings.TrimSpace(a.Type) == "" || strings.TrimSpace(a.Name) == "" {
			ve.add("attachments", "each attachment must have url, type, and name")
			break
		}
		if a.Size != nil && *a.Size < 0 {
			ve.add("attachments", "attachment size cannot be negative")
			break
		}
	}

	return ve.orNil()
}

// Before orders messages by (Timestamp, ID).
func (m Message) Before(o Message) bool {
	if !m.Timestamp.Equal(o.Timestamp) {
		return m.Timestamp.Before(o.Timestamp)
	}
	return m.ID < o.ID
}

// Involves reports whether userID is the sender or the receiver.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Other returns the party of m that is not userID.
func (m Message) Other(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
