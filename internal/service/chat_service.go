package service

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"
)

// SendInput is a message as submitted by a client. SenderID may be left empty
// and defaults to the caller; RoomID may be left empty and is derived from the
// pair.
type SendInput struct {
	SenderID    string
	ReceiverID  string
	RoomID      string
	Content     string
	Attachments []domain.Attachment
	Type        domain.MessageType
	IsUrgent    bool
	Metadata    map[string]string
}

// ChatService authorizes client operations against the caller's identity,
// persists through the message store and only then fans out to live sessions.
type ChatService struct {
	repo          MessageRepository
	pub           Publisher
	conversations *ConversationService
	log           *slog.Logger
}

func NewChatService(repo MessageRepository, pub Publisher, conversations *ConversationService, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{repo: repo, pub: pub, conversations: conversations, log: log}
}

// Send is not idempotent: a client retrying after an ambiguous failure can
// store the message twice.
func (s *ChatService) Send(ctx context.Context, callerID string, in SendInput) (*domain.Message, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sender := in.SenderID
	if sender == "" {
		sender = callerID
	}
	if sender != callerID {
		return nil, domain.ErrForbidden
	}

	saved, err := s.repo.Append(ctx, &domain.Message{
		SenderID:    sender,
		ReceiverID:  in.ReceiverID,
		RoomID:      in.RoomID,
		Content:     in.Content,
		Attachments: in.Attachments,
		Type:        in.Type,
		IsUrgent:    in.IsUrgent,
		Metadata:    in.Metadata,
	})
	if err != nil {
		return nil, err
	}

	n := s.pub.Publish(saved.RoomID, realtime.NewMessage{Message: *saved})
	s.log.DebugContext(ctx, "chat: message sent",
		"id", saved.ID, "room", saved.RoomID, "delivered", n)
	return saved, nil
}

func (s *ChatService) History(ctx context.Context, callerID, userA, userB string, page domain.Page) ([]domain.Message, string, error) {
	if callerID == "" {
		return nil, "", domain.ErrUnauthenticated
	}
	if callerID != userA && callerID != userB {
		return nil, "", domain.ErrForbidden
	}
	return s.repo.History(ctx, userA, userB, page)
}

func (s *ChatService) Conversations(ctx context.Context, callerID, userID string) ([]domain.ConversationSummary, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if callerID != userID {
		return nil, domain.ErrForbidden
	}
	return s.conversations.Summarize(ctx, userID)
}

// MarkRead marks the caller's received messages among ids as read and returns
// how many changed. Ids the caller did not receive are skipped. When roomID
// names one of the caller's rooms and something changed, a read receipt is
// published there.
func (s *ChatService) MarkRead(ctx context.Context, callerID string, ids []string, roomID string) (int, error) {
	if callerID == "" {
		return 0, domain.ErrUnauthenticated
	}
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.repo.MarkRead(ctx, ids, callerID)
	if err != nil {
		return 0, err
	}

	if roomID == "" || n == 0 {
		return n, nil
	}
	if _, ok := domain.Counterpart(roomID, callerID); !ok {
		s.log.WarnContext(ctx, "chat: read receipt for foreign room not published",
			"room", roomID, "reader", callerID)
		return n, nil
	}
	s.pub.Publish(roomID, realtime.ReadReceipt{RoomID: roomID, ReaderID: callerID, MessageIDs: ids})
	return n, nil
}

func (s *ChatService) UnreadCount(ctx context.Context, callerID string) (int, error) {
	if callerID == "" {
		return 0, domain.ErrUnauthenticated
	}
	return s.repo.UnreadCount(ctx, callerID)
}

// CanJoin reports whether userID may join roomID: only the two parties of a
// room can.
func (s *ChatService) CanJoin(userID, roomID string) bool {
	_, ok := domain.Counterpart(roomID, userID)
	return ok
}
