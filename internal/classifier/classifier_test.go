package classifier

import (
	"testing"

	"penalty-alerts/internal/match"
)

type keySet map[match.EventKey]bool

func (k keySet) Has(key match.EventKey) bool { return k[key] }

func minute(v int) *int { return &v }

func TestExactAdditionWinsOverInBox(t *testing.T) {
	ev := match.Event{
		Minute:   minute(43),
		Type:     "Foul",
		Addition: "Foul",
		Location: "18 yds",
	}

	d, ok := Classify("100", ev, keySet{})
	if !ok {
		t.Fatal("Foul addition should alert")
	}
	if d.Rule != RuleAddition {
		t.Fatalf("expected addition rule, got %s", d.Rule)
	}
	if d.Key != "100_foul_43'" {
		t.Fatalf("unexpected key %q", d.Key)
	}
	if d.Time != "43'" {
		t.Fatalf("unexpected time %q", d.Time)
	}
}

func TestOrdinalPenaltyPattern(t *testing.T) {
	cases := []struct {
		addition string
		want     bool
	}{
		{"1st Penalty", true},
		{"2nd Penalty", true},
		{"2ND PENALTY", true},
		{"3rd penalty", true},
		{"11th Penalty", true},
		{"22nd Penaltyx", false},
		{"Penalty", false},
		{"x 2nd Penalty", false},
		{"2nd  Penalty", false},
	}
	for _, tc := range cases {
		if got := IsOrdinalPenalty(tc.addition); got != tc.want {
			t.Fatalf("IsOrdinalPenalty(%q) = %v, want %v", tc.addition, got, tc.want)
		}
	}
}

func TestOrdinalPenaltyDecision(t *testing.T) {
	ev := match.Event{Minute: minute(61), Type: "Penalty", Addition: "2ND PENALTY"}
	d, ok := Classify("5", ev, keySet{})
	if !ok || d.Rule != RuleOrdinalPenalty {
		t.Fatalf("expected ordinal rule, got %#v ok=%v", d, ok)
	}
	if d.Fragment != "2ND PENALTY" {
		t.Fatalf("fragment should echo addition, got %q", d.Fragment)
	}
}

func TestInBoxTruthTable(t *testing.T) {
	cases := []struct {
		name string
		ev   match.Event
		want bool
	}{
		{"18 yds location", match.Event{Location: "18 yds"}, true},
		{"18-yard location", match.Event{Location: "Inside the 18-yard box"}, true},
		{"defensive box", match.Event{Zone: "defensive", Description: "ball in the box"}, true},
		{"attacking box only", match.Event{Zone: "attacking", Description: "box"}, false},
		{"attacking opposition box", match.Event{Zone: "attacking", Description: "opposition box"}, true},
		{"midfield", match.Event{Zone: "middle", Description: "box"}, false},
		{"empty", match.Event{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InBox(tc.ev); got != tc.want {
				t.Fatalf("InBox = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInBoxBranchUsesSaltedKey(t *testing.T) {
	ev := match.Event{
		Minute:      minute(78),
		Type:        "Yellow Card",
		Addition:    "Tactical",
		Zone:        "defensive",
		Description: "tripped inside the box",
		Location:    "penalty area",
	}

	d, ok := Classify("9", ev, keySet{})
	if !ok || d.Rule != RuleInBox {
		t.Fatalf("expected in-box rule, got %#v ok=%v", d, ok)
	}
	if d.Key != "9_yellow card_area_78'" {
		t.Fatalf("unexpected salted key %q", d.Key)
	}
	if d.Location != "penalty area" {
		t.Fatalf("location should be carried, got %q", d.Location)
	}

	if _, ok := Classify("9", ev, keySet{d.Key: true}); ok {
		t.Fatal("recorded in-box key must suppress a second alert")
	}
}

func TestAlreadyRecordedKeySkipped(t *testing.T) {
	ev := match.Event{Minute: minute(12), Type: "Var", Addition: "Penalty confirmed"}
	seen := keySet{match.KeyFor("1", "Penalty confirmed", "12'"): true}
	if _, ok := Classify("1", ev, seen); ok {
		t.Fatal("recorded key should be skipped")
	}
}

func TestUnknownKindOutsideBoxIgnored(t *testing.T) {
	cases := []match.Event{
		{Minute: minute(5), Type: "Goal", Addition: "Header", Location: "18 yds"},
		{Minute: minute(5), Type: "Foul", Addition: "", Zone: "middle"},
	}
	for _, ev := range cases {
		if d, ok := Classify("1", ev, keySet{}); ok {
			t.Fatalf("event should not alert: %#v", d)
		}
	}
}
