package app

import (
	"context"
	"errors"

	"penalty-alerts/internal/alerting"
	"penalty-alerts/internal/dedup"
	"penalty-alerts/internal/fetcher"
	"penalty-alerts/internal/match"
	"penalty-alerts/internal/service"
)

const simulatedMatchID = "simulated"

// SimulateAlert 构造一条合成事件并走完整告警流程，不读写去重存储。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if err := a.Config.RequireChannel(); err != nil {
		return err
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if resolver, ok := notifier.(alerting.Resolver); ok {
		if err := resolver.Resolve(ctx); err != nil {
			return err
		}
	}

	feed := fetcher.StaticFetcher{Matches: []match.Match{simulatedMatch(opts)}}
	svc := service.New(service.Options{Mention: a.Config.Alerting.Mention}, nil,
		feed, dedup.NewStore(dedup.NewMemoryBackend(), a.Logger), nil, notifier, nil, a.Logger)

	report, err := svc.ProcessCycle(ctx)
	if err != nil {
		return err
	}
	if report.Alerts == 0 {
		return errors.New("模拟事件未命中任何规则")
	}
	return nil
}

func simulatedMatch(opts SimulateOptions) match.Match {
	minute := opts.Minute
	ev := match.Event{
		Minute:      &minute,
		Type:        opts.Type,
		Addition:    opts.Addition,
		Description: opts.Description,
		Location:    opts.Location,
		Zone:        opts.Zone,
	}
	if opts.Extra != 0 {
		extra := opts.Extra
		ev.ExtraMinute = &extra
	}

	return match.Match{
		ID:         simulatedMatchID,
		StatusCode: "LIVE",
		Participants: []match.Participant{
			{Name: opts.Home, Location: "home"},
			{Name: opts.Away, Location: "away"},
		},
		Events: []match.Event{ev},
	}
}
