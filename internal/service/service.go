package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"penalty-alerts/internal/alerting"
	"penalty-alerts/internal/classifier"
	"penalty-alerts/internal/dedup"
	"penalty-alerts/internal/fetcher"
	"penalty-alerts/internal/logging"
	"penalty-alerts/internal/match"
	"penalty-alerts/internal/metrics"
	"penalty-alerts/internal/scheduler"
	"penalty-alerts/internal/storage"
)

// Options tune the poller.
type Options struct {
	// Mention is appended to every alert, e.g. "@here". Empty disables it.
	Mention string
	// LockKey enables the postgres single-runner guard when non-zero.
	LockKey int64
}

// CycleReport summarises one processed cycle.
type CycleReport struct {
	CycleID  string
	Matches  int
	Active   int
	Events   int
	Alerts   int
	Skipped  bool
	Duration time.Duration
}

// Service orchestrates fetching, classification, alerting and dedup persistence.
// It is driven by a single goroutine; the key set is not shared.
type Service struct {
	scheduler  *scheduler.Scheduler
	feed       fetcher.MatchFetcher
	keys       *dedup.Store
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	journal    *logging.Journal
	logger     zerolog.Logger

	mention string
	locker  storage.AdvisoryLocker
	lockKey int64

	seen   dedup.KeySet
	loaded bool
}

// New constructs the monitoring service. alertStore and journal may be nil.
func New(opts Options, sched *scheduler.Scheduler, feed fetcher.MatchFetcher, keys *dedup.Store, alertStore storage.AlertStore, notifier alerting.Notifier, journal *logging.Journal, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := alertStore.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		feed:       feed,
		keys:       keys,
		alertStore: alertStore,
		notifier:   notifier,
		journal:    journal,
		logger:     logger.With().Str("component", "service").Logger(),
		mention:    opts.Mention,
		locker:     locker,
		lockKey:    opts.LockKey,
	}
}

// Run loads the key set, polls until ctx is cancelled, then persists the set
// one last time.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	s.ensureLoaded(ctx)

	err := s.scheduler.Run(ctx, func(ctx context.Context) error {
		_, cycleErr := s.ProcessCycle(ctx)
		return cycleErr
	})

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.save(saveCtx)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ProcessCycle 执行单个轮询周期: fetch, classify, notify, persist.
// A returned error means the caller should back off before the next cycle.
func (s *Service) ProcessCycle(ctx context.Context) (report CycleReport, err error) {
	started := time.Now()
	report.CycleID = uuid.NewString()
	logger := s.logger.With().Str("cycle_id", report.CycleID).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
		report.Duration = time.Since(started)
		metrics.CycleDuration.Observe(report.Duration.Seconds())
		s.observe(logger, report, err)
	}()

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return report, err
	}
	if !proceed {
		logger.Debug().Msg("skip cycle because advisory lock held elsewhere")
		report.Skipped = true
		return report, nil
	}
	if unlock != nil {
		defer unlock()
	}

	s.ensureLoaded(ctx)
	if unlock != nil {
		// another runner may have alerted since our last cycle
		if err := s.refresh(ctx, logger); err != nil {
			return report, err
		}
	}

	matches, err := s.feed.FetchLive(ctx)
	if err != nil {
		return report, &FetchError{Err: err}
	}
	report.Matches = len(matches)

	active := match.Active(matches)
	report.Active = len(active)
	metrics.ActiveMatches.Set(float64(len(active)))

	added, err := s.scan(ctx, logger, report.CycleID, active, &report)
	if err != nil {
		if added > 0 {
			s.save(ctx)
		}
		return report, err
	}

	s.save(ctx)
	return report, nil
}

func (s *Service) scan(ctx context.Context, logger zerolog.Logger, cycleID string, active []match.Match, report *CycleReport) (int, error) {
	added := 0
	for _, m := range active {
		home, away := m.Home(), m.Away()
		for _, ev := range m.Events {
			report.Events++

			decision, ok := classifier.Classify(m.ID, ev, s.seen)
			if !ok {
				continue
			}

			note := alerting.Notification{
				MatchID:  m.ID,
				Home:     home,
				Away:     away,
				Time:     decision.Time,
				Rule:     decision.Rule.String(),
				Fragment: decision.Fragment,
				Location: decision.Location,
				Possible: decision.Rule == classifier.RuleInBox,
				Mention:  s.mention,
			}
			if err := s.notifier.Notify(ctx, note); err != nil {
				return added, fmt.Errorf("notify match %s at %s: %w", m.ID, decision.Time, err)
			}

			s.seen.Add(decision.Key)
			added++
			report.Alerts++
			metrics.AlertsSentTotal.WithLabelValues(note.Rule).Inc()

			message := alerting.RenderMessage(note)
			s.journal.Alert(m.ID, decision.Key.String(), note.Rule, message)
			logger.Info().
				Str("match_id", m.ID).
				Str("key", decision.Key.String()).
				Str("rule", note.Rule).
				Msg("alert sent")

			s.recordAlert(ctx, logger, storage.AlertRecord{
				CycleID:  cycleID,
				MatchID:  m.ID,
				EventKey: decision.Key.String(),
				Rule:     note.Rule,
				Home:     home,
				Away:     away,
				Minute:   decision.Time,
				Message:  message,
			})
		}
	}
	return added, nil
}

func (s *Service) recordAlert(ctx context.Context, logger zerolog.Logger, rec storage.AlertRecord) {
	if s.alertStore == nil {
		return
	}
	if _, err := s.alertStore.InsertAlert(ctx, rec); err != nil {
		logger.Error().Err(err).Str("key", rec.EventKey).Msg("failed to persist alert record")
	}
}

func (s *Service) ensureLoaded(ctx context.Context) {
	if s.loaded {
		return
	}
	s.seen = s.keys.Load(ctx)
	s.loaded = true
	metrics.DedupKeys.Set(float64(s.seen.Len()))
}

func (s *Service) refresh(ctx context.Context, logger zerolog.Logger) error {
	stored, err := s.keys.Read(ctx)
	if err != nil {
		return fmt.Errorf("refresh notified keys: %w", err)
	}
	if added := s.seen.Merge(stored); added > 0 {
		logger.Debug().Int("keys", added).Msg("merged keys recorded by another runner")
		metrics.DedupKeys.Set(float64(s.seen.Len()))
	}
	return nil
}

func (s *Service) save(ctx context.Context) {
	if !s.loaded {
		return
	}
	metrics.DedupKeys.Set(float64(s.seen.Len()))
	if err := s.keys.Save(ctx, s.seen); err != nil {
		metrics.DedupSaveErrorsTotal.Inc()
		s.logger.Warn().Err(err).Int("keys", s.seen.Len()).Msg("failed to persist notified keys")
		s.journal.Warning("failed to persist notified keys", err)
	}
}

func (s *Service) observe(logger zerolog.Logger, report CycleReport, err error) {
	var fetchErr *FetchError
	switch {
	case report.Skipped:
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
	case errors.As(err, &fetchErr):
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeFetchError).Inc()
		metrics.FetchErrorsTotal.Inc()
		s.journal.Warning("livescores fetch failed", fetchErr.Err)
	case err != nil:
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		s.journal.Error(err)
	default:
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
		logger.Info().
			Int("matches", report.Matches).
			Int("active", report.Active).
			Int("events", report.Events).
			Int("alerts", report.Alerts).
			Dur("elapsed", report.Duration).
			Msg("cycle complete")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// FetchError marks a cycle that failed before any processing.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch livescores: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// PanicError carries a panic recovered inside a cycle.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("cycle panic: %v", e.Value) }
