package match

import "strings"

// inBoxSuffix salts keys produced by the in-box rule so they never collide
// with addition-based keys for the same minute.
const inBoxSuffix = "_area"

// EventKey identifies a (match, addition-or-type, time) triple. Keys are
// always normalized.
type EventKey string

// Normalize trims and lower-cases a raw key. Normalize(Normalize(k)) == Normalize(k).
func Normalize(raw string) EventKey {
	return EventKey(strings.ToLower(strings.TrimSpace(raw)))
}

// KeyFor builds the addition-based key for an event.
func KeyFor(matchID, addition, time string) EventKey {
	return Normalize(matchID + "_" + strings.TrimSpace(addition) + "_" + time)
}

// InBoxKeyFor builds the salted key used by the in-box foul/card rule.
func InBoxKeyFor(matchID string, kind Kind, time string) EventKey {
	return KeyFor(matchID, kind.Label()+inBoxSuffix, time)
}

func (k EventKey) String() string {
	return string(k)
}
