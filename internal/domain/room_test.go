package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoomIDFor_IsOrderIndependent(t *testing.T) {
	require.Equal(t, RoomIDFor("A", "B"), RoomIDFor("B", "A"))
	require.Equal(t, "A-B", RoomIDFor("B", "A"))
}

func TestCounterpart(t *testing.T) {
	u1 := "0190f3a4-7d1e-7c55-b1a8-1f2e3d4c5b6a"
	u2 := "0190f3a4-9999-7c55-b1a8-1f2e3d4c5b6a"
	room := RoomIDFor(u1, u2)

	other, ok := Counterpart(room, u1)
	require.True(t, ok)
	require.Equal(t, u2, other)

	other, ok = Counterpart(room, u2)
	require.True(t, ok)
	require.Equal(t, u1, other)

	_, ok = Counterpart(room, "intruder")
	require.False(t, ok)

	_, ok = Counterpart("B-A", "A")
	require.False(t, ok, "non-canonical room ids are rejected")

	_, ok = Counterpart("A-", "A")
	require.False(t, ok)
}

func TestRoomIDFor_DistinctPairsNeverCollide(t *testing.T) {
	r1 := RoomIDFor("a", "b-c")
	r2 := RoomIDFor("a-b", "c")
	require.NotEqual(t, r1, r2)
	require.NotEqual(t, RoomIDFor("a%2Db", "c"), r2)

	other, ok := Counterpart(r1, "a")
	require.True(t, ok)
	require.Equal(t, "b-c", other)

	_, ok = Counterpart(r1, "a-b")
	require.False(t, ok)
	_, ok = Counterpart(r2, "a")
	require.False(t, ok)
	_, ok = Counterpart("a-b-c", "a-b")
	require.False(t, ok, "an unescaped separator inside an id is not a room")

	a, b, ok := ParseRoomID(r2)
	require.True(t, ok)
	require.Equal(t, []string{"a-b", "c"}, []string{a, b})
}

func TestCursor_RoundTrip(t *testing.T) {
	m := validMessage()
	require.NoError(t, m.Prepare(time.Now()))

	s, err := EncodeCursor(CursorOf(m))
	require.NoError(t, err)

	c, err := DecodeCursor(s)
	require.NoError(t, err)
	require.Equal(t, m.ID, c.ID)
	require.True(t, m.Timestamp.Equal(c.CreatedAt))
	require.False(t, c.Follows(m))

	_, err = DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidCursor)

	c, err = DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, c)
}
