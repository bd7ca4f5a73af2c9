package fetcher

import (
	"context"
	"errors"

	"penalty-alerts/internal/match"
)

// ErrNoData is returned when the feed answered but carried no usable match list.
var ErrNoData = errors.New("livescores payload has no data list")

// MatchFetcher retrieves the current live fixtures.
type MatchFetcher interface {
	FetchLive(ctx context.Context) ([]match.Match, error)
}

// StaticFetcher replays a fixed snapshot; used by simulate and replay.
type StaticFetcher struct {
	Matches []match.Match
	Err     error
}

// FetchLive returns the configured snapshot.
func (s StaticFetcher) FetchLive(context.Context) ([]match.Match, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Matches, nil
}

var _ MatchFetcher = StaticFetcher{}
