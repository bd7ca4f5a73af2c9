package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"penalty-alerts/internal/storage"
)

// Show prints recent alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("storage not configured; cannot show alerts")
	}
	defer db.Close()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	alerts, err := db.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if err := writeAlertTable(out, alerts); err != nil {
		return err
	}

	if opts.WithCount {
		total, err := db.CountAlerts(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d alerts stored, showing %d\n", total, len(alerts))
	}
	return nil
}

func writeAlertTable(out io.Writer, alerts []storage.AlertRecord) error {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tMatch\tTeams\tMinute\tRule\tKey")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.MatchID,
			sanitizeInline(alert.Home+" vs "+alert.Away),
			alert.Minute,
			alert.Rule,
			sanitizeInline(alert.EventKey),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
