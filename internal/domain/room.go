package domain

import "strings"

const roomSep = "-"

var (
	escapeID   = strings.NewReplacer("%", "%25", roomSep, "%2D")
	unescapeID = strings.NewReplacer("%2D", roomSep, "%25", "%")
)

// RoomIDFor returns the canonical room of the unordered pair {a, b}: the two
// ids in ascending order joined by "-". A "-" or "%" inside an id is
// percent-escaped, so every room id contains exactly one separator and no two
// pairs share a room. Ids without those characters appear verbatim ("A-B").
func RoomIDFor(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return escapeID.Replace(a) + roomSep + escapeID.Replace(b)
}

// ParseRoomID returns the pair a canonical room id was built from.
func ParseRoomID(roomID string) (a, b string, ok bool) {
	left, right, found := strings.Cut(roomID, roomSep)
	if !found || left == "" || right == "" {
		return "", "", false
	}
	a, b = unescapeID.Replace(left), unescapeID.Replace(right)
	if RoomIDFor(a, b) != roomID {
		return "", "", false
	}
	return a, b, true
}

// Counterpart reports the other party of roomID when userID is one of its
// two members.
func Counterpart(roomID, userID string) (string, bool) {
	a, b, ok := ParseRoomID(roomID)
	if !ok || userID == "" {
		return "", false
	}
	switch userID {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}
