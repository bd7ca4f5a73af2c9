package logging

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Journal is an append-only JSON-lines record of cycle errors, warnings and
// sent alerts. A nil *Journal discards everything.
type Journal struct {
	logger zerolog.Logger
	file   *os.File
}

// OpenJournal opens (or creates) the journal at path. An empty path yields a
// journal that discards records.
func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		return NewJournal(io.Discard), nil
	}
	file, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := NewJournal(file)
	j.file = file
	return j, nil
}

// NewJournal writes records to w.
func NewJournal(w io.Writer) *Journal {
	return &Journal{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Error records a cycle failure together with its concrete error type.
func (j *Journal) Error(err error) {
	if j == nil || err == nil {
		return
	}
	j.logger.Log().
		Str("kind", "error").
		Str("error", err.Error()).
		Str("error_type", fmt.Sprintf("%T", rootCause(err))).
		Send()
}

// rootCause follows the Unwrap chain to the innermost error.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// Warning records a recoverable condition.
func (j *Journal) Warning(msg string, err error) {
	if j == nil {
		return
	}
	ev := j.logger.Log().Str("kind", "warning").Str("message", msg)
	if err != nil {
		ev = ev.Str("error", err.Error())
	}
	ev.Send()
}

// Alert records a delivered alert.
func (j *Journal) Alert(matchID, key, rule, text string) {
	if j == nil {
		return
	}
	j.logger.Log().
		Str("kind", "alert").
		Str("match_id", matchID).
		Str("key", key).
		Str("rule", rule).
		Str("text", text).
		Send()
}

// Close releases the journal file, if any.
func (j *Journal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	return j.file.Close()
}
