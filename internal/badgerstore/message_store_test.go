package badgerstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

func newStore(t *testing.T) *MessageStore {
	t.Helper()
	db, err := Open(Options{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMessageStore(db, nil)
}

// fixed clock that advances one millisecond per call
func tick(s *MessageStore, start time.Time) {
	var mu sync.Mutex
	cur := start
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

func send(t *testing.T, s *MessageStore, from, to, content string) *domain.Message {
	t.Helper()
	m, err := s.Append(context.Background(), &domain.Message{SenderID: from, ReceiverID: to, Content: content})
	require.NoError(t, err)
	return m
}

func TestAppend_AssignsDefaults(t *testing.T) {
	s := newStore(t)
	m := send(t, s, "doc", "pat", "  hello  ")

	require.NotEmpty(t, m.ID)
	require.Equal(t, "hello", m.Content)
	require.Equal(t, domain.TypeText, m.Type)
	require.Equal(t, domain.RoomIDFor("doc", "pat"), m.RoomID)
	require.False(t, m.IsRead)
	require.False(t, m.Timestamp.IsZero())
}

func TestAppend_RejectsInvalidWithoutWriting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, &domain.Message{SenderID: "doc", ReceiverID: "pat", Content: "   "})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Append(ctx, &domain.Message{SenderID: "doc", ReceiverID: "pat", RoomID: "doc-other", Content: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)

	hist, _, err := s.History(ctx, "doc", "pat", domain.Page{})
	require.NoError(t, err)
	require.Empty(t, hist)
	n, err := s.UnreadCount(ctx, "pat")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAppend_DuplicateID(t *testing.T) {
	s := newStore(t)
	m := send(t, s, "doc", "pat", "one")

	_, err := s.Append(context.Background(), &domain.Message{ID: m.ID, SenderID: "doc", ReceiverID: "pat", Content: "two"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAppend_RoundTripsAllFields(t *testing.T) {
	s := newStore(t)
	size := int64(2048)
	in := &domain.Message{
		SenderID:    "doc",
		ReceiverID:  "pat",
		Content:     "see attached",
		Type:        domain.TypePrescription,
		IsUrgent:    true,
		Attachments: []domain.Attachment{{URL: "https://blob/x.pdf", Type: "application/pdf", Name: "x.pdf", Size: &size}},
		Metadata:    map[string]string{"visit": "42"},
	}
	saved, err := s.Append(context.Background(), in)
	require.NoError(t, err)

	hist, _, err := s.History(context.Background(), "pat", "doc", domain.Page{})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, *saved, hist[0])
}

func TestHistory_BothDirectionsAscending(t *testing.T) {
	s := newStore(t)
	tick(s, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))

	a1 := send(t, s, "a", "b", "a1")
	a2 := send(t, s, "a", "b", "a2")
	a3 := send(t, s, "a", "b", "a3")
	b1 := send(t, s, "b", "a", "b1")
	send(t, s, "a", "c", "other pair")

	hist, next, err := s.History(context.Background(), "b", "a", domain.Page{})
	require.NoError(t, err)
	require.Empty(t, next)
	require.Equal(t, []string{a1.ID, a2.ID, a3.ID, b1.ID}, messageIDs(hist))
}

func TestHistory_SameTimestampOrderedByID(t *testing.T) {
	s := newStore(t)
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := s.Append(ctx, &domain.Message{ID: "m-2", SenderID: "a", ReceiverID: "b", Content: "second", Timestamp: at})
	require.NoError(t, err)
	_, err = s.Append(ctx, &domain.Message{ID: "m-1", SenderID: "b", ReceiverID: "a", Content: "first", Timestamp: at})
	require.NoError(t, err)

	hist, _, err := s.History(ctx, "a", "b", domain.Page{})
	require.NoError(t, err)
	require.Equal(t, []string{"m-1", "m-2"}, messageIDs(hist))
}

func TestHistory_Pagination(t *testing.T) {
	s := newStore(t)
	tick(s, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	var want []string
	for i := 0; i < 5; i++ {
		want = append(want, send(t, s, "a", "b", fmt.Sprintf("m%d", i)).ID)
	}

	ctx := context.Background()
	var got []string
	page := domain.Page{Limit: 2}
	for i := 0; i < 10; i++ {
		items, next, err := s.History(ctx, "a", "b", page)
		require.NoError(t, err)
		got = append(got, messageIDs(items)...)
		if next == "" {
			break
		}
		page.After = next
	}
	require.Equal(t, want, got)

	_, _, err := s.History(ctx, "a", "b", domain.Page{After: "%%%"})
	require.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestHistory_PrefixIsolation(t *testing.T) {
	s := newStore(t)
	// "a-b" with "c" would share a textual prefix with room "a-b-c" without length-prefixed segments
	send(t, s, "a", "b", "ab")
	send(t, s, "a-b", "c", "abc")

	hist, _, err := s.History(context.Background(), "a", "b", domain.Page{})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, "ab", hist[0].Content)

	list, err := s.ListByParticipant(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestHistory_PairsWithSeparatorInIDs(t *testing.T) {
	s := newStore(t)
	send(t, s, "a", "b-c", "private a to b-c")
	send(t, s, "a-b", "c", "a-b to c")

	hist, _, err := s.History(context.Background(), "a-b", "c", domain.Page{})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, "a-b to c", hist[0].Content)

	hist, _, err = s.History(context.Background(), "b-c", "a", domain.Page{})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, "private a to b-c", hist[0].Content)
}

func TestMarkRead_OnlyReceiverAndCountsTransitions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	m1 := send(t, s, "a", "b", "1")
	m2 := send(t, s, "a", "b", "2")
	m3 := send(t, s, "b", "a", "3")

	n, err := s.UnreadCount(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// sender cannot mark its own outgoing message
	updated, err := s.MarkRead(ctx, []string{m1.ID}, "a")
	require.NoError(t, err)
	require.Zero(t, updated)

	updated, err = s.MarkRead(ctx, []string{m1.ID, m2.ID, m3.ID, "missing", m1.ID}, "b")
	require.NoError(t, err)
	require.Equal(t, 2, updated)

	updated, err = s.MarkRead(ctx, []string{m1.ID, m2.ID}, "b")
	require.NoError(t, err)
	require.Zero(t, updated)

	n, err = s.UnreadCount(ctx, "b")
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = s.UnreadCount(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	hist, _, err := s.History(ctx, "a", "b", domain.Page{})
	require.NoError(t, err)
	for _, m := range hist {
		require.Equal(t, m.ReceiverID == "b", m.IsRead, m.ID)
	}
}

func TestMarkRead_ConcurrentOverlapCountsOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, send(t, s, "a", "b", fmt.Sprint(i)).ID)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
		errs  []error
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.MarkRead(ctx, ids, "b")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			total += n
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, badger.ErrConflict)
	}

	// a caller that exhausted its retries only ever lost to one that succeeded
	require.Equal(t, 10, total)
	n, err := s.UnreadCount(ctx, "b")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestListByParticipant(t *testing.T) {
	s := newStore(t)
	tick(s, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	m1 := send(t, s, "a", "b", "1")
	m2 := send(t, s, "c", "a", "2")
	send(t, s, "b", "c", "3")

	list, err := s.ListByParticipant(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, []string{m1.ID, m2.ID}, messageIDs(list))

	list, err = s.ListByParticipant(context.Background(), "nobody")
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func messageIDs(ms []domain.Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
