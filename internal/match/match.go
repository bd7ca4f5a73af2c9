package match

import "strings"

// UnknownTeam is used when a side cannot be located among the participants.
const UnknownTeam = "Unknown"

// Status is the lifecycle state of a fixture as far as monitoring is concerned.
type Status int

const (
	StatusUnknown Status = iota
	StatusInPlay
	StatusFinished
	StatusAfterExtraTime
	StatusPostponed
)

// ParseStatus maps a feed status code onto Status. Any non-empty code that is
// not terminal is treated as in play.
func ParseStatus(code string) Status {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "":
		return StatusUnknown
	case "FT", "FINISHED":
		return StatusFinished
	case "AOT", "AET", "AFTER-EXTRA-TIME":
		return StatusAfterExtraTime
	case "POST", "POSTPONED":
		return StatusPostponed
	default:
		return StatusInPlay
	}
}

// Terminal reports whether no further events are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusAfterExtraTime, StatusPostponed:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusInPlay:
		return "in_play"
	case StatusFinished:
		return "finished"
	case StatusAfterExtraTime:
		return "after_extra_time"
	case StatusPostponed:
		return "postponed"
	default:
		return "unknown"
	}
}

// Participant is one side of a fixture. Location is "home" or "away".
type Participant struct {
	Name     string
	Location string
}

// Match is a fixture snapshot rebuilt from the feed on every cycle.
type Match struct {
	ID           string
	StatusCode   string
	Participants []Participant
	Events       []Event
}

// Status parses the raw status code.
func (m Match) Status() Status {
	return ParseStatus(m.StatusCode)
}

// Home returns the home side's name or UnknownTeam.
func (m Match) Home() string {
	return m.side("home")
}

// Away returns the away side's name or UnknownTeam.
func (m Match) Away() string {
	return m.side("away")
}

func (m Match) side(location string) string {
	for _, p := range m.Participants {
		if p.Location == location {
			return p.Name
		}
	}
	return UnknownTeam
}

// Active drops matches whose status is terminal, preserving feed order.
func Active(matches []Match) []Match {
	active := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Status().Terminal() {
			continue
		}
		active = append(active, m)
	}
	return active
}
