package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"penalty-alerts/internal/alerting"
	"penalty-alerts/internal/dedup"
	"penalty-alerts/internal/fetcher"
	"penalty-alerts/internal/match"
	"penalty-alerts/internal/storage"
)

func intp(v int) *int { return &v }

func teamMatch(id, status string, events ...match.Event) match.Match {
	return match.Match{
		ID:         id,
		StatusCode: status,
		Participants: []match.Participant{
			{Name: "Team A", Location: "home"},
			{Name: "Team B", Location: "away"},
		},
		Events: events,
	}
}

func foulAt(minute int) match.Event {
	return match.Event{Minute: intp(minute), Type: "Foul", Addition: "Foul"}
}

func newTestService(feed fetcher.MatchFetcher, backend dedup.Backend, notifier alerting.Notifier, alerts storage.AlertStore) *Service {
	logger := zerolog.Nop()
	return New(Options{Mention: "@here"}, nil, feed, dedup.NewStore(backend, logger), alerts, notifier, nil, logger)
}

func TestEndToEndFoulAlert(t *testing.T) {
	backend := dedup.NewMemoryBackend()
	notifier := alerting.NewDryRunNotifier(zerolog.Nop())
	feed := fetcher.StaticFetcher{Matches: []match.Match{teamMatch("77", "INPLAY_1ST_HALF", foulAt(43))}}
	svc := newTestService(feed, backend, notifier, nil)

	report, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatalf("ProcessCycle: %v", err)
	}
	if report.Alerts != 1 {
		t.Fatalf("expected exactly one alert, got %d", report.Alerts)
	}

	sent := notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sent))
	}
	msg := alerting.RenderMessage(sent[0])
	for _, want := range []string{"Team A", "Team B", "43'"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}

	keys, _ := backend.ReadKeys(context.Background())
	if len(keys) != 1 || keys[0] != "77_foul_43'" {
		t.Fatalf("key should be persisted after the cycle, got %v", keys)
	}
}

func TestSameSnapshotTwiceIsIdempotent(t *testing.T) {
	notifier := alerting.NewDryRunNotifier(zerolog.Nop())
	feed := fetcher.StaticFetcher{Matches: []match.Match{
		teamMatch("1", "LIVE",
			foulAt(10),
			match.Event{Minute: intp(30), ExtraMinute: intp(0), Addition: "1st Penalty"},
			match.Event{Minute: intp(45), ExtraMinute: intp(2), Type: "Yellowcard", Location: "18 yds"},
		),
	}}
	svc := newTestService(feed, dedup.NewMemoryBackend(), notifier, nil)

	first, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Alerts != 3 {
		t.Fatalf("first cycle should alert 3 events, got %d", first.Alerts)
	}
	if second.Alerts != 0 {
		t.Fatalf("second cycle should alert nothing, got %d", second.Alerts)
	}
	if !notifier.Sent()[2].Possible {
		t.Fatal("in-box card should be a possible-penalty alert")
	}
}

func TestKeysLoadedFromBackendSuppressAlerts(t *testing.T) {
	notifier := alerting.NewDryRunNotifier(zerolog.Nop())
	feed := fetcher.StaticFetcher{Matches: []match.Match{teamMatch("77", "LIVE", foulAt(43))}}
	svc := newTestService(feed, dedup.NewMemoryBackend("77_FOUL_43'"), notifier, nil)

	report, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Alerts != 0 || len(notifier.Sent()) != 0 {
		t.Fatal("key recorded in a previous run must not alert again")
	}
}

func TestTerminalMatchesContributeNothing(t *testing.T) {
	notifier := alerting.NewDryRunNotifier(zerolog.Nop())
	feed := fetcher.StaticFetcher{Matches: []match.Match{
		teamMatch("1", "FT", foulAt(10)),
		teamMatch("2", "AOT", foulAt(20)),
		teamMatch("3", "POST", foulAt(30)),
	}}
	svc := newTestService(feed, dedup.NewMemoryBackend(), notifier, nil)

	report, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Active != 0 || report.Events != 0 || report.Alerts != 0 {
		t.Fatalf("terminal matches should be dropped: %#v", report)
	}
}

func TestFetchFailureReturnsFetchError(t *testing.T) {
	backend := dedup.NewMemoryBackend()
	svc := newTestService(fetcher.StaticFetcher{Err: fetcher.ErrNoData}, backend, alerting.NewDryRunNotifier(zerolog.Nop()), nil)

	_, err := svc.ProcessCycle(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || !errors.Is(err, fetcher.ErrNoData) {
		t.Fatalf("expected FetchError wrapping ErrNoData, got %v", err)
	}
}

type flakyNotifier struct {
	failAfter int
	calls     int
}

func (f *flakyNotifier) Notify(context.Context, alerting.Notification) error {
	f.calls++
	if f.calls > f.failAfter {
		return errors.New("discord unavailable")
	}
	return nil
}

func TestDeliveryFailureKeepsKeyUnrecorded(t *testing.T) {
	backend := dedup.NewMemoryBackend()
	notifier := &flakyNotifier{failAfter: 1}
	feed := fetcher.StaticFetcher{Matches: []match.Match{teamMatch("5", "LIVE", foulAt(10), foulAt(20))}}
	svc := newTestService(feed, backend, notifier, nil)

	if _, err := svc.ProcessCycle(context.Background()); err == nil {
		t.Fatal("delivery failure should surface for backoff")
	}
	keys, _ := backend.ReadKeys(context.Background())
	if len(keys) != 1 || keys[0] != "5_foul_10'" {
		t.Fatalf("only the delivered alert should be recorded, got %v", keys)
	}

	notifier.failAfter = 100
	report, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Alerts != 1 {
		t.Fatalf("the failed alert should be retried once, got %d", report.Alerts)
	}
}

type panicFetcher struct{}

func (panicFetcher) FetchLive(context.Context) ([]match.Match, error) {
	panic("unexpected payload")
}

func TestPanicIsContainedToCycle(t *testing.T) {
	svc := newTestService(panicFetcher{}, dedup.NewMemoryBackend(), alerting.NewDryRunNotifier(zerolog.Nop()), nil)
	_, err := svc.ProcessCycle(context.Background())
	var panicErr *PanicError
	if !errors.As(err, &panicErr) || !strings.Contains(err.Error(), "cycle panic") {
		t.Fatalf("panic should become a cycle error, got %v", err)
	}
}

type failingBackend struct {
	dedup.MemoryBackend
}

func (*failingBackend) WriteKeys(context.Context, []string) error {
	return errors.New("disk full")
}

func TestSaveFailureIsNotFatal(t *testing.T) {
	notifier := alerting.NewDryRunNotifier(zerolog.Nop())
	feed := fetcher.StaticFetcher{Matches: []match.Match{teamMatch("8", "LIVE", foulAt(43))}}
	svc := newTestService(feed, &failingBackend{}, notifier, nil)

	if _, err := svc.ProcessCycle(context.Background()); err != nil {
		t.Fatalf("save failure must not fail the cycle: %v", err)
	}
	report, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Alerts != 0 {
		t.Fatal("in-memory set should still suppress the repeat")
	}
}

type memoryAlerts struct {
	records []storage.AlertRecord
}

func (m *memoryAlerts) InsertAlert(_ context.Context, rec storage.AlertRecord) (storage.AlertRecord, error) {
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memoryAlerts) ListRecentAlerts(context.Context, int) ([]storage.AlertRecord, error) {
	return m.records, nil
}

func (m *memoryAlerts) ListAlertsBetween(context.Context, time.Time, time.Time) ([]storage.AlertRecord, error) {
	return m.records, nil
}

func (m *memoryAlerts) CountAlerts(context.Context) (int64, error) {
	return int64(len(m.records)), nil
}

func TestAlertsAreAudited(t *testing.T) {
	alerts := &memoryAlerts{}
	feed := fetcher.StaticFetcher{Matches: []match.Match{teamMatch("77", "LIVE", foulAt(43))}}
	svc := newTestService(feed, dedup.NewMemoryBackend(), alerting.NewDryRunNotifier(zerolog.Nop()), alerts)

	report, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(alerts.records))
	}
	rec := alerts.records[0]
	if rec.CycleID != report.CycleID || rec.EventKey != "77_foul_43'" || rec.Home != "Team A" {
		t.Fatalf("unexpected audit record %#v", rec)
	}
}

// sharedLock stands in for the postgres advisory lock shared by two runners.
type sharedLock struct {
	memoryAlerts
	held     bool
	acquires int
}

func (l *sharedLock) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if l.held {
		return nil, false, nil
	}
	l.held = true
	l.acquires++
	return func() { l.held = false }, true, nil
}

type switchFetcher struct {
	matches []match.Match
}

func (f *switchFetcher) FetchLive(context.Context) ([]match.Match, error) {
	return f.matches, nil
}

func newLockedService(feed fetcher.MatchFetcher, backend dedup.Backend, notifier alerting.Notifier, lock *sharedLock) *Service {
	logger := zerolog.Nop()
	return New(Options{Mention: "@here", LockKey: 42}, nil, feed, dedup.NewStore(backend, logger), lock, notifier, nil, logger)
}

func TestTwoRunnersNeverDoublePost(t *testing.T) {
	ctx := context.Background()
	backend := dedup.NewMemoryBackend()
	lock := &sharedLock{}
	feed := &switchFetcher{}

	notifierA := alerting.NewDryRunNotifier(zerolog.Nop())
	notifierB := alerting.NewDryRunNotifier(zerolog.Nop())
	a := newLockedService(feed, backend, notifierA, lock)
	b := newLockedService(feed, backend, notifierB, lock)

	// both runners load the empty set before anything happens
	for _, svc := range []*Service{a, b} {
		if _, err := svc.ProcessCycle(ctx); err != nil {
			t.Fatal(err)
		}
	}

	feed.matches = []match.Match{teamMatch("77", "LIVE", foulAt(43))}
	first, err := a.ProcessCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.ProcessCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if first.Alerts != 1 || second.Alerts != 0 {
		t.Fatalf("expected one alert across runners, got A=%d B=%d", first.Alerts, second.Alerts)
	}
	if len(notifierA.Sent())+len(notifierB.Sent()) != 1 {
		t.Fatalf("key 77_foul_43' delivered %d times", len(notifierA.Sent())+len(notifierB.Sent()))
	}
	if lock.held {
		t.Fatal("lock should be released after each cycle")
	}
	if lock.acquires != 4 {
		t.Fatalf("expected 4 lock acquisitions, got %d", lock.acquires)
	}

	keys, _ := backend.ReadKeys(ctx)
	if len(keys) != 1 || keys[0] != "77_foul_43'" {
		t.Fatalf("shared backend should hold the key once, got %v", keys)
	}
}

func TestCycleSkippedWhileLockHeldElsewhere(t *testing.T) {
	lock := &sharedLock{held: true}
	notifier := alerting.NewDryRunNotifier(zerolog.Nop())
	feed := fetcher.StaticFetcher{Matches: []match.Match{teamMatch("77", "LIVE", foulAt(43))}}
	svc := newLockedService(feed, dedup.NewMemoryBackend(), notifier, lock)

	report, err := svc.ProcessCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Skipped || len(notifier.Sent()) != 0 {
		t.Fatalf("cycle should be skipped without alerting: %#v", report)
	}
}

type unreadableBackend struct {
	dedup.MemoryBackend
	fail bool
}

func (u *unreadableBackend) ReadKeys(ctx context.Context) ([]string, error) {
	if u.fail {
		return nil, errors.New("connection reset")
	}
	return u.MemoryBackend.ReadKeys(ctx)
}

func TestRefreshFailureBacksOffWithoutAlerting(t *testing.T) {
	backend := &unreadableBackend{}
	notifier := alerting.NewDryRunNotifier(zerolog.Nop())
	feed := fetcher.StaticFetcher{Matches: []match.Match{teamMatch("77", "LIVE", foulAt(43))}}
	svc := newLockedService(feed, backend, notifier, &sharedLock{})

	if _, err := svc.ProcessCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	backend.fail = true
	feed.Matches = append(feed.Matches, teamMatch("78", "LIVE", foulAt(50)))
	svc.feed = feed
	if _, err := svc.ProcessCycle(context.Background()); err == nil {
		t.Fatal("unreadable shared keys should fail the cycle")
	}
	if len(notifier.Sent()) != 1 {
		t.Fatalf("no alert should be sent while shared keys are unreadable, got %d", len(notifier.Sent()))
	}
}
