package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const maxConflictRetries = 5

type MessageStore struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	if log == nil {
		log = slog.Default()
	}
	return &MessageStore{db: db, log: log, now: time.Now}
}

// Append validates m, assigns ID and Timestamp when absent and writes the
// record together with its index entries in a single transaction.
func (s *MessageStore) Append(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := *m
	if err := out.Prepare(s.now()); err != nil {
		return nil, fmt.Errorf("prepare message: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.IsRead = false

	val, err := json.Marshal(fromMessage(&out))
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(msgKey(out.ID)); err == nil {
			return domain.Invalid("id", "message id already exists")
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		entries := [][]byte{
			orderedKey(pairPrefix(out.RoomID), out.Timestamp, out.ID),
			orderedKey(userPrefix(out.SenderID), out.Timestamp, out.ID),
			orderedKey(userPrefix(out.ReceiverID), out.Timestamp, out.ID),
			unreadKey(out.ReceiverID, out.ID),
		}
		if err := txn.Set(msgKey(out.ID), val); err != nil {
			return err
		}
		for _, k := range entries {
			if err := txn.Set(k, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &out, nil
}

// History returns the messages exchanged between userA and userB in either
// direction, ascending by (Timestamp, ID).
func (s *MessageStore) History(ctx context.Context, userA, userB string, page domain.Page) ([]domain.Message, string, error) {
	cur, err := domain.DecodeCursor(page.After)
	if err != nil {
		return nil, "", err
	}
	out := make([]domain.Message, 0)
	if userA == "" || userB == "" || userA == userB {
		return out, "", nil
	}

	prefix := pairPrefix(domain.RoomIDFor(userA, userB))
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if cur != nil {
			seek = orderedKey(prefix, cur.CreatedAt, cur.ID)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if cur != nil && bytes.Equal(it.Item().Key(), seek) {
				continue
			}
			m, err := s.load(txn, idFromOrdered(it.Item().Key(), prefix))
			if err != nil {
				return err
			}
			if !m.Involves(userA) || !m.Involves(userB) {
				continue
			}
			out = append(out, m)
			if page.Limit > 0 && len(out) == page.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("history: %w", err)
	}
	return out, domain.NextCursor(out, page.Limit), nil
}

// ListByParticipant returns every message userID sent or received, ascending.
func (s *MessageStore) ListByParticipant(ctx context.Context, userID string) ([]domain.Message, error) {
	out := make([]domain.Message, 0)
	if userID == "" {
		return out, nil
	}
	prefix := userPrefix(userID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := s.load(txn, idFromOrdered(it.Item().Key(), prefix))
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list by participant: %w", err)
	}
	return out, nil
}

// MarkRead flips IsRead for the ids whose receiver is readerID and returns how
// many were unread before the call. Unknown and foreign ids are skipped.
func (s *MessageStore) MarkRead(ctx context.Context, ids []string, readerID string) (int, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 || readerID == "" {
		return 0, nil
	}

	var updated int
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return 0, err
		}
		updated, err = s.markRead(ids, readerID)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		s.log.Debug("badger: mark read conflict, retrying", "attempt", attempt+1, "reader", readerID)
	}
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return updated, nil
}

func (s *MessageStore) markRead(ids []string, readerID string) (int, error) {
	updated := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			rec, err := s.loadRecord(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if rec.ReceiverID != readerID || rec.IsRead {
				continue
			}
			rec.IsRead = true
			val, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(msgKey(id), val); err != nil {
				return err
			}
			if err := txn.Delete(unreadKey(readerID, id)); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return updated, err
}

// UnreadCount counts messages addressed to userID that are still unread.
func (s *MessageStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	prefix := unreadPrefix(userID)
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

func (s *MessageStore) load(txn *badger.Txn, id string) (domain.Message, error) {
	rec, err := s.loadRecord(txn, id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("load %s: %w", id, err)
	}
	return rec.toMessage(), nil
}

func (s *MessageStore) loadRecord(txn *badger.Txn, id string) (record, error) {
	var rec record
	item, err := txn.Get(msgKey(id))
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, err
}
