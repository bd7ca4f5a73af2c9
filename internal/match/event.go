package match

import (
	"strconv"
	"strings"
)

// Kind is the closed set of event types the classifier cares about.
type Kind int

const (
	KindUnknown Kind = iota
	KindFoul
	KindYellowCard
	KindRedCard
)

// ParseKind maps the feed's free-text event type onto Kind.
func ParseKind(text string) Kind {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "foul":
		return KindFoul
	case "yellow card", "yellowcard":
		return KindYellowCard
	case "red card", "redcard":
		return KindRedCard
	default:
		return KindUnknown
	}
}

// Label is the canonical feed spelling of the kind.
func (k Kind) Label() string {
	switch k {
	case KindFoul:
		return "Foul"
	case KindYellowCard:
		return "Yellow Card"
	case KindRedCard:
		return "Red Card"
	default:
		return "Unknown"
	}
}

// Addition is the closed set of addition sub-classifiers matched verbatim.
type Addition int

const (
	AdditionUnknown Addition = iota
	AdditionPenaltyConfirmed
	AdditionFoul
	AdditionYellowCard
	AdditionRedCard
)

var additionsByText = map[string]Addition{
	"Penalty confirmed": AdditionPenaltyConfirmed,
	"Foul":              AdditionFoul,
	"Yellow Card":       AdditionYellowCard,
	"Red Card":          AdditionRedCard,
}

// ParseAddition matches the trimmed text exactly (case-sensitive).
func ParseAddition(text string) Addition {
	if a, ok := additionsByText[strings.TrimSpace(text)]; ok {
		return a
	}
	return AdditionUnknown
}

// AdditionFor returns the addition sharing a kind's vocabulary entry.
func AdditionFor(k Kind) Addition {
	switch k {
	case KindFoul:
		return AdditionFoul
	case KindYellowCard:
		return AdditionYellowCard
	case KindRedCard:
		return AdditionRedCard
	default:
		return AdditionUnknown
	}
}

// Event is an immutable snapshot of one feed event.
type Event struct {
	Minute      *int
	ExtraMinute *int
	Type        string
	Addition    string
	Description string
	Location    string
	Zone        string
}

// Kind classifies the event type.
func (e Event) Kind() Kind {
	return ParseKind(e.Type)
}

// AdditionKind classifies the addition field.
func (e Event) AdditionKind() Addition {
	return ParseAddition(e.Addition)
}

// Time formats the event clock, e.g. "43'" or "45'+2'".
func (e Event) Time() string {
	return FormatMinute(e.Minute, e.ExtraMinute)
}

// FormatMinute renders a minute with optional injury time. A missing minute
// renders as "?'" and a zero extra minute is omitted.
func FormatMinute(minute, extra *int) string {
	base := "?"
	if minute != nil {
		base = strconv.Itoa(*minute)
	}
	out := base + "'"
	if extra != nil && *extra != 0 {
		out += "+" + strconv.Itoa(*extra) + "'"
	}
	return out
}
