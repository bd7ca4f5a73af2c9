package storage

import "time"

// AlertRecord captures a delivered alert for auditing and export.
type AlertRecord struct {
	ID        int64
	CycleID   string
	MatchID   string
	EventKey  string
	Rule      string
	Home      string
	Away      string
	Minute    string
	Message   string
	CreatedAt time.Time
}
