package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Page selects a window of a history query. Limit 0 returns everything after After.
type Page struct {
	After string
	Limit int
}

type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

func CursorOf(m Message) Cursor {
	return Cursor{CreatedAt: m.Timestamp, ID: m.ID}
}

// Follows reports whether m sorts strictly after the cursor position.
func (c Cursor) Follows(m Message) bool {
	return Message{Timestamp: c.CreatedAt, ID: c.ID}.Before(m)
}

func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	return &c, nil
}

// NextCursor returns the cursor after the last item when the page is full.
func NextCursor(items []Message, limit int) string {
	if limit <= 0 || len(items) < limit {
		return ""
	}
	next, err := EncodeCursor(CursorOf(items[len(items)-1]))
	if err != nil {
		return ""
	}
	return next
}
