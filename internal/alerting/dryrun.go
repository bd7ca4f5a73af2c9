package alerting

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// DryRunNotifier logs rendered alerts instead of sending them.
type DryRunNotifier struct {
	logger zerolog.Logger

	mu   sync.Mutex
	sent []Notification
}

// NewDryRunNotifier builds a notifier that only logs.
func NewDryRunNotifier(logger zerolog.Logger) *DryRunNotifier {
	return &DryRunNotifier{logger: logger.With().Str("component", "alert_dryrun").Logger()}
}

// Notify records and logs the notification.
func (n *DryRunNotifier) Notify(_ context.Context, note Notification) error {
	n.mu.Lock()
	n.sent = append(n.sent, note)
	n.mu.Unlock()

	n.logger.Info().
		Str("match_id", note.MatchID).
		Str("rule", note.Rule).
		Str("text", RenderMessage(note)).
		Msg("dry-run alert")
	return nil
}

// Resolve always succeeds.
func (n *DryRunNotifier) Resolve(context.Context) error { return nil }

// Sent returns a copy of everything notified so far.
func (n *DryRunNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

var (
	_ Notifier = (*DryRunNotifier)(nil)
	_ Resolver = (*DryRunNotifier)(nil)
)
