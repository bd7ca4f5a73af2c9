// Package classifier decides whether a feed event is worth a penalty alert.
//
// Three rules are evaluated in order and the first one that matches wins:
// an exact addition vocabulary, an ordinal "Nth Penalty" addition, and a
// foul or card that the location heuristic places inside the penalty box.
package classifier

import (
	"regexp"
	"strings"

	"penalty-alerts/internal/match"
)

// Rule identifies which branch produced a decision.
type Rule int

const (
	RuleNone Rule = iota
	RuleAddition
	RuleOrdinalPenalty
	RuleInBox
)

func (r Rule) String() string {
	switch r {
	case RuleAddition:
		return "addition"
	case RuleOrdinalPenalty:
		return "ordinal_penalty"
	case RuleInBox:
		return "in_box"
	default:
		return "none"
	}
}

var ordinalPenalty = regexp.MustCompile(`(?i)^\d+(st|nd|rd|th) Penalty$`)

var fragments = map[match.Addition]string{
	match.AdditionPenaltyConfirmed: "🛑 **Penalty confirmed by VAR!**",
	match.AdditionFoul:             "🚨 **Foul in the box! Possible penalty!**",
	match.AdditionYellowCard:       "⚠️ **Card in the box! Potential penalty!**",
	match.AdditionRedCard:          "🔴 **Red card in the box! Could be a penalty!**",
}

// KeyLookup reports whether a key has already been alerted.
type KeyLookup interface {
	Has(key match.EventKey) bool
}

// Decision describes an alert to send and the key to record once it is sent.
type Decision struct {
	Key      match.EventKey
	Rule     Rule
	Time     string
	Fragment string
	Location string
}

// Classify evaluates an event of matchID against the rules. It returns false
// when the event is already recorded or no rule matches.
func Classify(matchID string, ev match.Event, seen KeyLookup) (Decision, bool) {
	time := ev.Time()
	key := match.KeyFor(matchID, ev.Addition, time)
	if seen.Has(key) {
		return Decision{}, false
	}

	addition := strings.TrimSpace(ev.Addition)

	if a := ev.AdditionKind(); a != match.AdditionUnknown {
		return Decision{Key: key, Rule: RuleAddition, Time: time, Fragment: fragments[a]}, true
	}

	if IsOrdinalPenalty(addition) {
		return Decision{Key: key, Rule: RuleOrdinalPenalty, Time: time, Fragment: addition}, true
	}

	kind := ev.Kind()
	if kind == match.KindUnknown || !InBox(ev) {
		return Decision{}, false
	}

	areaKey := match.InBoxKeyFor(matchID, kind, time)
	if seen.Has(areaKey) {
		return Decision{}, false
	}
	return Decision{
		Key:      areaKey,
		Rule:     RuleInBox,
		Time:     time,
		Fragment: fragments[match.AdditionFor(kind)],
		Location: ev.Location,
	}, true
}

// IsOrdinalPenalty matches additions such as "1st Penalty" or "2ND PENALTY".
func IsOrdinalPenalty(addition string) bool {
	return ordinalPenalty.MatchString(addition)
}

// InBox guesses from free-text metadata whether an event happened inside the
// penalty area.
func InBox(ev match.Event) bool {
	location := strings.ToLower(ev.Location)
	zone := strings.ToLower(ev.Zone)
	description := strings.ToLower(ev.Description)

	switch {
	case strings.Contains(location, "18 yds"), strings.Contains(location, "18-yard"):
		return true
	case strings.Contains(zone, "defensive") && strings.Contains(description, "box"):
		return true
	case strings.Contains(zone, "attacking") && strings.Contains(description, "opposition box"):
		return true
	default:
		return false
	}
}
