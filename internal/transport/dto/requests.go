package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/service"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SendMessageRequest is the body of POST /api/chat/send and the payload of
// the send-message websocket frame. Sender may be omitted; when present it
// must be the caller.
type SendMessageRequest struct {
	Sender      string            `json:"sender" validate:"omitempty,max=128"`
	Receiver    string            `json:"receiver" validate:"required,max=128"`
	Content     string            `json:"content" validate:"required,max=5000"`
	RoomID      string            `json:"roomId" validate:"omitempty,max=300"`
	Attachments []Attachment      `json:"attachments" validate:"omitempty,max=20,dive"`
	MessageType string            `json:"messageType" validate:"omitempty,oneof=text image file prescription report"`
	IsUrgent    bool              `json:"isUrgent"`
	Metadata    map[string]string `json:"metadata" validate:"omitempty,max=32,dive,keys,max=64,endkeys,max=1024"`
}

func (r SendMessageRequest) Input() service.SendInput {
	return service.SendInput{
		SenderID:    r.Sender,
		ReceiverID:  r.Receiver,
		RoomID:      r.RoomID,
		Content:     r.Content,
		Attachments: ToAttachments(r.Attachments),
		Type:        domain.MessageType(r.MessageType),
		IsUrgent:    r.IsUrgent,
		Metadata:    r.Metadata,
	}
}

// MarkReadRequest is the body of PATCH /api/chat/mark-read. Over the websocket
// the room is sent as roomId.
type MarkReadRequest struct {
	MessageIDs     []string `json:"messageIds" validate:"max=500,dive,required,max=128"`
	ConversationID string   `json:"conversationId" validate:"omitempty,max=300"`
	RoomID         string   `json:"roomId" validate:"omitempty,max=300"`
}

// Room returns the room a read receipt should go to.
func (r MarkReadRequest) Room() string {
	if r.ConversationID != "" {
		return r.ConversationID
	}
	return r.RoomID
}

type RoomRequest struct {
	RoomID string `json:"roomId" validate:"required,max=300"`
}

// Validate runs the struct's validate tags and reports failures as a
// *domain.ValidationError keyed by JSON path.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Invalid("body", err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		// Namespace is "<Struct>.<json path>"
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if _, ok := fields[field]; !ok {
			fields[field] = describe(fe)
		}
	}
	return &domain.ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	}
	return "failed " + fe.Tag()
}

// HistoryRequest is the gRPC counterpart of
// GET /api/chat/conversation/{userA}/{userB}.
type HistoryRequest struct {
	UserA string `json:"userA" validate:"required,max=128"`
	UserB string `json:"userB" validate:"required,max=128"`
	After string `json:"after" validate:"omitempty,max=512"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=500"`
}

type ConversationsRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

type HistoryResponse struct {
	Items      []Message `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type ConversationsResponse struct {
	Items []ConversationSummary `json:"items"`
}

type MarkReadResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}
