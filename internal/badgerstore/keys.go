package badgerstore

import (
	"fmt"
	"strconv"
	"time"
)

// Key layout:
//
//	msg:{id}                          -> JSON record
//	pair:{room}:{ts019}:{id}          -> empty, history index
//	user:{uid}:{ts019}:{id}           -> empty, participant index
//	unread:{uid}:{id}                 -> empty, present while unread
//
// Variable segments are length prefixed ("3:abc") so one id can never be a
// prefix of another's range. ts019 is UnixMicro zero padded to 19 digits,
// which keeps lexicographic key order equal to (timestamp, id) order.

const tsWidth = 19

func seg(s string) string {
	return strconv.Itoa(len(s)) + ":" + s
}

func ts019(t time.Time) string {
	return fmt.Sprintf("%0*d", tsWidth, t.UnixMicro())
}

func msgKey(id string) []byte {
	return []byte("msg:" + id)
}

func pairPrefix(room string) []byte {
	return []byte("pair:" + seg(room) + ":")
}

func userPrefix(uid string) []byte {
	return []byte("user:" + seg(uid) + ":")
}

func unreadPrefix(uid string) []byte {
	return []byte("unread:" + seg(uid) + ":")
}

func orderedKey(prefix []byte, at time.Time, id string) []byte {
	k := make([]byte, 0, len(prefix)+tsWidth+1+len(id))
	k = append(k, prefix...)
	k = append(k, ts019(at)...)
	k = append(k, ':')
	return append(k, id...)
}

func unreadKey(uid, id string) []byte {
	return append(unreadPrefix(uid), id...)
}

// idFromOrdered strips prefix and the timestamp segment.
func idFromOrdered(key, prefix []byte) string {
	return string(key[len(prefix)+tsWidth+1:])
}
