package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"penalty-alerts/internal/alerting"
	"penalty-alerts/internal/config"
	"penalty-alerts/internal/dedup"
	"penalty-alerts/internal/fetcher"
	"penalty-alerts/internal/service"
	"penalty-alerts/internal/storage"
)

// Replay runs a single cycle against a saved livescores payload.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) (service.CycleReport, error) {
	if opts.File == "" {
		return service.CycleReport{}, errors.New("--file is required")
	}

	payload, err := os.ReadFile(opts.File)
	if err != nil {
		return service.CycleReport{}, fmt.Errorf("read payload: %w", err)
	}
	matches, err := fetcher.Decode(payload)
	if err != nil {
		return service.CycleReport{}, err
	}

	var notifier alerting.Notifier = alerting.NewDryRunNotifier(a.Logger)
	if opts.Send {
		if err := a.Config.RequireChannel(); err != nil {
			return service.CycleReport{}, err
		}
		if notifier, err = a.newNotifier(); err != nil {
			return service.CycleReport{}, err
		}
		if resolver, ok := notifier.(alerting.Resolver); ok {
			if err := resolver.Resolve(ctx); err != nil {
				return service.CycleReport{}, err
			}
		}
	} else {
		a.Logger.Warn().Msg("replay dry-run: alerts are logged, not sent")
	}

	var db storage.Database
	if opts.Persist || a.Config.Dedup.Backend == config.DedupDatabase {
		if db, err = a.openDatabase(ctx); err != nil {
			return service.CycleReport{}, err
		}
		if db != nil {
			defer db.Close()
		}
	}

	backend, err := a.keyBackend(db)
	if err != nil {
		return service.CycleReport{}, err
	}
	if !opts.Persist {
		// known keys are still honoured, new ones stay in memory
		known := dedup.NewStore(backend, a.Logger).Load(ctx)
		backend = dedup.NewMemoryBackend(known.Strings()...)
	}

	var alerts storage.AlertStore
	if opts.Persist {
		alerts = alertStoreOf(db)
	}

	svc := service.New(service.Options{Mention: a.Config.Alerting.Mention}, nil,
		fetcher.StaticFetcher{Matches: matches}, dedup.NewStore(backend, a.Logger), alerts, notifier, nil, a.Logger)

	report, err := svc.ProcessCycle(ctx)
	if err != nil {
		return report, err
	}
	a.Logger.Info().
		Int("matches", report.Matches).
		Int("active", report.Active).
		Int("alerts", report.Alerts).
		Bool("persisted", opts.Persist).
		Msg("replay finished")
	return report, nil
}
