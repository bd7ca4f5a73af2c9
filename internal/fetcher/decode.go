package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"penalty-alerts/internal/match"
)

type livescoresResponse struct {
	Data json.RawMessage `json:"data"`
}

type rawMatch struct {
	ID           flexString       `json:"id"`
	Status       flexString       `json:"status"`
	State        flexString       `json:"state"`
	Participants []rawParticipant `json:"participants"`
	Events       []rawEvent       `json:"events"`
}

type rawParticipant struct {
	Name string   `json:"name"`
	Meta *rawMeta `json:"meta"`
}

type rawEvent struct {
	Minute      flexInt    `json:"minute"`
	ExtraMinute flexInt    `json:"extra_minute"`
	Type        flexString `json:"type"`
	Addition    flexString `json:"addition"`
	Description flexString `json:"description"`
	Meta        *rawMeta   `json:"meta"`
}

type rawMeta struct {
	Location flexString `json:"location"`
	Zone     flexString `json:"zone"`
}

// Decode parses a livescores payload. A payload whose data member is missing
// or not a list yields ErrNoData.
func Decode(payload []byte) ([]match.Match, error) {
	var resp livescoresResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNoData
	}

	var raws []rawMatch
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	matches := make([]match.Match, 0, len(raws))
	for _, r := range raws {
		matches = append(matches, r.toMatch())
	}
	return matches, nil
}

func (r rawMatch) toMatch() match.Match {
	status := r.Status.String()
	if status == "" {
		status = r.State.String()
	}

	m := match.Match{
		ID:         r.ID.String(),
		StatusCode: status,
	}
	for _, p := range r.Participants {
		part := match.Participant{Name: p.Name}
		if p.Meta != nil {
			part.Location = p.Meta.Location.String()
		}
		m.Participants = append(m.Participants, part)
	}
	for _, e := range r.Events {
		ev := match.Event{
			Minute:      e.Minute.ptr(),
			ExtraMinute: e.ExtraMinute.ptr(),
			Type:        strings.TrimSpace(e.Type.String()),
			Addition:    strings.TrimSpace(e.Addition.String()),
			Description: e.Description.String(),
		}
		if e.Meta != nil {
			ev.Location = e.Meta.Location.String()
			ev.Zone = e.Meta.Zone.String()
		}
		m.Events = append(m.Events, ev)
	}
	return m
}

// flexString accepts a JSON string, number, bool, null, or a lookup object
// such as {"short_name": "FT"} or {"name": "Foul"}.
type flexString string

func (f flexString) String() string { return string(f) }

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case '{':
		var obj struct {
			ShortName     string `json:"short_name"`
			DeveloperName string `json:"developer_name"`
			Name          string `json:"name"`
			Code          string `json:"code"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		for _, candidate := range []string{obj.ShortName, obj.DeveloperName, obj.Name, obj.Code} {
			if candidate != "" {
				*f = flexString(candidate)
				return nil
			}
		}
		*f = ""
	case '[':
		*f = ""
	default:
		*f = flexString(string(b))
	}
	return nil
}

// flexInt accepts a JSON number, numeric string, or null. Anything else decodes as missing.
type flexInt struct {
	value int
	valid bool
}

func (f flexInt) ptr() *int {
	if !f.valid {
		return nil
	}
	v := f.value
	return &v
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*f = flexInt{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	text := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
	}
	// unparseable minutes are treated as missing so one odd event does not
	// drop the whole payload
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	*f = flexInt{value: int(n), valid: true}
	return nil
}
