package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type MessageRepository struct {
	q   querier
	now func() time.Time
}

func NewMessageRepository(q querier) *MessageRepository {
	return &MessageRepository{q: q, now: time.Now}
}

type attachmentRow struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size *int64 `json:"size,omitempty"`
}

func (r *MessageRepository) Append(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	out := *m
	if err := out.Prepare(r.now()); err != nil {
		return nil, fmt.Errorf("prepare message: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.IsRead = false

	attachments := make([]attachmentRow, 0, len(out.Attachments))
	for _, a := range out.Attachments {
		attachments = append(attachments, attachmentRow(a))
	}

	_, err := r.q.Exec(ctx, queryInsertMessage,
		out.ID,
		out.SenderID,
		out.ReceiverID,
		out.RoomID,
		out.Content,
		attachments,
		string(out.Type),
		out.IsUrgent,
		out.Metadata,
		out.Timestamp,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &out, nil
}

// History returns messages between userA and userB ascending by (created_at, id),
// starting after page.After.
func (r *MessageRepository) History(ctx context.Context, userA, userB string, page domain.Page) ([]domain.Message, string, error) {
	cur, err := domain.DecodeCursor(page.After)
	if err != nil {
		return nil, "", err
	}
	if userA == "" || userB == "" || userA == userB {
		return []domain.Message{}, "", nil
	}

	var createdAt, id, limit any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}
	if page.Limit > 0 {
		limit = page.Limit
	}

	out, err := r.list(ctx, queryHistory, userA, userB, createdAt, id, limit)
	if err != nil {
		return nil, "", fmt.Errorf("history: %w", err)
	}
	return out, domain.NextCursor(out, page.Limit), nil
}

func (r *MessageRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Message, error) {
	out, err := r.list(ctx, queryListByParticipant, userID)
	if err != nil {
		return nil, fmt.Errorf("list by participant: %w", err)
	}
	return out, nil
}

// MarkRead is a single conditional UPDATE, so each row flips at most once no
// matter how many callers overlap.
func (r *MessageRepository) MarkRead(ctx context.Context, ids []string, readerID string) (int, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 || readerID == "" {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, queryMarkRead, ids, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", mapPgError(err))
	}
	return int(tag.RowsAffected()), nil
}

func (r *MessageRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, queryUnreadCount, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

func (r *MessageRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Message, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var (
		m           domain.Message
		msgType     string
		attachments []attachmentRow
	)
	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.RoomID,
		&m.Content,
		&attachments,
		&msgType,
		&m.IsUrgent,
		&m.IsRead,
		&m.Metadata,
		&m.Timestamp,
	)
	if err != nil {
		return domain.Message{}, err
	}
	m.Type = domain.MessageType(msgType)
	m.Timestamp = m.Timestamp.UTC()
	for _, a := range attachments {
		m.Attachments = append(m.Attachments, domain.Attachment(a))
	}
	return m, nil
}
