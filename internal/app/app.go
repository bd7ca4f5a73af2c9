package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"penalty-alerts/internal/alerting"
	"penalty-alerts/internal/config"
	"penalty-alerts/internal/dedup"
	"penalty-alerts/internal/fetcher"
	"penalty-alerts/internal/logging"
	"penalty-alerts/internal/metrics"
	"penalty-alerts/internal/scheduler"
	"penalty-alerts/internal/service"
	"penalty-alerts/internal/storage"
	"penalty-alerts/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() *fetcher.Livescores {
	cfg := a.Config.SportMonks
	ua := cfg.UserAgent
	if ua == "" {
		ua = version.UserAgent()
	}
	return fetcher.NewLivescores(fetcher.LivescoresOptions{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Includes:          cfg.Includes,
		PerPage:           cfg.PerPage,
		Timeout:           cfg.RequestTimeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		UserAgent:         ua,
	}, a.Logger)
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	cfg := a.Config.Alerting
	switch cfg.Channel {
	case config.ChannelDiscord:
		notifier, err := alerting.NewDiscordNotifier(cfg.Discord.Token, cfg.Discord.ChannelID, cfg.Timeout, a.Logger)
		if err != nil {
			return nil, err
		}
		return notifier, nil
	case config.ChannelTelegram:
		return alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Timeout, a.Logger), nil
	case config.ChannelDryRun:
		return alerting.NewDryRunNotifier(a.Logger), nil
	default:
		return nil, fmt.Errorf("alerting.channel %q is not supported", cfg.Channel)
	}
}

// openDatabase returns nil when no storage driver is configured.
func (a *App) openDatabase(ctx context.Context) (storage.Database, error) {
	db, err := storage.Open(ctx, a.Config.Storage)
	if errors.Is(err, storage.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}

func (a *App) keyBackend(db storage.Database) (dedup.Backend, error) {
	switch a.Config.Dedup.Backend {
	case config.DedupDatabase:
		if db == nil {
			return nil, errors.New("dedup.backend=database requires storage.driver")
		}
		return db, nil
	default:
		return dedup.NewFileBackend(a.Config.Dedup.Path), nil
	}
}

func alertStoreOf(db storage.Database) storage.AlertStore {
	if db == nil {
		return nil
	}
	return db
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Config.RequireFeed(); err != nil {
		return err
	}
	if err := a.Config.RequireChannel(); err != nil {
		return err
	}

	journal, err := logging.OpenJournal(a.Config.Logging.Journal)
	if err != nil {
		return err
	}
	defer journal.Close()

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		a.Logger.Warn().Msg("storage.driver not configured; alert history disabled")
	} else {
		defer db.Close()
	}

	backend, err := a.keyBackend(db)
	if err != nil {
		return err
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		Backoff:      a.Config.Scheduler.Backoff,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(service.Options{
		Mention: a.Config.Alerting.Mention,
		LockKey: a.Config.Storage.AdvisoryLockKey,
	}, sched, a.newFetcher(), dedup.NewStore(backend, a.Logger), alertStoreOf(db), notifier, journal, a.Logger)

	var metricsServer *metrics.Server
	if a.Config.Metrics.Enabled {
		metricsServer = metrics.NewServer(a.Config.Metrics.ListenAddress, a.Logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if resolver, ok := notifier.(alerting.Resolver); ok {
			if err := resolver.Resolve(gctx); err != nil {
				journal.Error(err)
				a.Logger.Error().Err(err).Msg("alert channel unavailable; monitoring stopped")
				if metricsServer != nil {
					return nil
				}
				return err
			}
		}
		if metricsServer != nil {
			metricsServer.SetReady(true)
		}

		a.Logger.Info().
			Str("channel", a.Config.Alerting.Channel).
			Dur("interval", a.Config.Scheduler.Interval).
			Msg("starting monitoring service")
		err := svc.Run(gctx)
		if metricsServer != nil {
			metricsServer.SetReady(false)
		}
		return err
	})

	if metricsServer != nil {
		g.Go(metricsServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// RunOnce executes a single live poll cycle with the configured channel and
// storage, then exits.
func (a *App) RunOnce(ctx context.Context) (service.CycleReport, error) {
	if err := a.Config.RequireFeed(); err != nil {
		return service.CycleReport{}, err
	}
	if err := a.Config.RequireChannel(); err != nil {
		return service.CycleReport{}, err
	}

	db, err := a.openDatabase(ctx)
	if err != nil {
		return service.CycleReport{}, err
	}
	if db != nil {
		defer db.Close()
	}

	backend, err := a.keyBackend(db)
	if err != nil {
		return service.CycleReport{}, err
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return service.CycleReport{}, err
	}
	if resolver, ok := notifier.(alerting.Resolver); ok {
		if err := resolver.Resolve(ctx); err != nil {
			return service.CycleReport{}, err
		}
	}

	svc := service.New(service.Options{
		Mention: a.Config.Alerting.Mention,
		LockKey: a.Config.Storage.AdvisoryLockKey,
	}, nil, a.newFetcher(), dedup.NewStore(backend, a.Logger), alertStoreOf(db), notifier, nil, a.Logger)
	return svc.ProcessCycle(ctx)
}

// ExportOptions hold parameters for exporting alert history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit     int
	WithCount bool
	// Out defaults to stdout.
	Out io.Writer
}

// ReplayOptions configure a one-shot cycle over a saved payload.
type ReplayOptions struct {
	File    string
	Send    bool
	Persist bool
}

// SimulateOptions describe the synthetic event pushed by simulate-alert.
type SimulateOptions struct {
	Home        string
	Away        string
	Minute      int
	Extra       int
	Type        string
	Addition    string
	Description string
	Location    string
	Zone        string
}
