// Package dedup keeps the set of event keys that have already been alerted
// and persists it between runs.
package dedup

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"penalty-alerts/internal/match"
)

// KeySet is the in-memory set of alerted keys. It only ever grows.
type KeySet map[match.EventKey]struct{}

// NewKeySet builds a set from raw keys, normalizing each.
func NewKeySet(raw ...string) KeySet {
	set := make(KeySet, len(raw))
	for _, k := range raw {
		set[match.Normalize(k)] = struct{}{}
	}
	return set
}

// Has reports whether key was recorded.
func (s KeySet) Has(key match.EventKey) bool {
	_, ok := s[key]
	return ok
}

// Add records key.
func (s KeySet) Add(key match.EventKey) {
	s[key] = struct{}{}
}

// Merge adds every key of other and returns how many were new.
func (s KeySet) Merge(other KeySet) int {
	added := 0
	for k := range other {
		if _, ok := s[k]; !ok {
			s[k] = struct{}{}
			added++
		}
	}
	return added
}

// Len returns the number of recorded keys.
func (s KeySet) Len() int {
	return len(s)
}

// Strings returns the keys sorted, for stable persistence.
func (s KeySet) Strings() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Backend reads and writes raw keys.
type Backend interface {
	ReadKeys(ctx context.Context) ([]string, error)
	WriteKeys(ctx context.Context, keys []string) error
}

// Store wraps a Backend with normalization and the never-fail load contract.
type Store struct {
	backend Backend
	logger  zerolog.Logger
}

// NewStore constructs a Store.
func NewStore(backend Backend, logger zerolog.Logger) *Store {
	return &Store{backend: backend, logger: logger.With().Str("component", "dedup").Logger()}
}

// Load returns the persisted set. Missing or unreadable storage yields an
// empty set.
func (s *Store) Load(ctx context.Context) KeySet {
	set, err := s.Read(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("notified keys unreadable; starting with empty set")
		return KeySet{}
	}
	s.logger.Info().Int("keys", set.Len()).Msg("notified keys loaded")
	return set
}

// Read returns the persisted set, surfacing backend errors.
func (s *Store) Read(ctx context.Context) (KeySet, error) {
	raw, err := s.backend.ReadKeys(ctx)
	if err != nil {
		return nil, err
	}
	return NewKeySet(raw...), nil
}

// Save overwrites persisted storage with set.
func (s *Store) Save(ctx context.Context, set KeySet) error {
	return s.backend.WriteKeys(ctx, set.Strings())
}
