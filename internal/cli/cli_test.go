package cli

import (
	"testing"
	"time"
)

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("from", "")
	if err != nil || got != nil {
		t.Fatalf("empty value should be nil, got %v %v", got, err)
	}

	got, err = parseTimeFlag("from", "2026-05-01")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %s", got)
	}

	got, err = parseTimeFlag("to", "2026-05-01T18:30:00Z")
	if err != nil || got.Hour() != 18 {
		t.Fatalf("unexpected RFC3339 parse %v %v", got, err)
	}

	if _, err := parseTimeFlag("to", "yesterday"); err == nil {
		t.Fatal("garbage should be rejected")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "show", "export", "replay", "simulate-alert", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered", name)
		}
	}
}
