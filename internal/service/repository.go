package service

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/realtime"
)

// MessageRepository is the durable message store. Implementations must be safe
// for concurrent use and must return empty slices, not errors, when nothing
// matches.
type MessageRepository interface {
	Append(ctx context.Context, m *domain.Message) (*domain.Message, error)
	History(ctx context.Context, userA, userB string, page domain.Page) ([]domain.Message, string, error)
	MarkRead(ctx context.Context, ids []string, readerID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	ListByParticipant(ctx context.Context, userID string) ([]domain.Message, error)
}

type Publisher interface {
	Publish(roomID string, ev realtime.Event) int
}
