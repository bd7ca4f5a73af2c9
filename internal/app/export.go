package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"penalty-alerts/internal/storage"
)

// defaultExportWindow is used when --from is omitted.
const defaultExportWindow = 7 * 24 * time.Hour

// Export renders alert history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("storage not configured; cannot export")
	}
	defer db.Close()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	alerts, err := db.ListAlertsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		a.Logger.Info().Msg("no alerts found for export window")
		return nil
	}

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, alerts); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		points := cumulativeAlerts(from, alerts)
		downsampled := downsamplePoints(points, opts.MaxPoints)
		a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("rendering alert chart")
		if err := writeAlertsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

type alertPoint struct {
	At    time.Time
	Total float64
}

// cumulativeAlerts returns the running alert count, anchored at zero on from.
func cumulativeAlerts(from time.Time, alerts []storage.AlertRecord) []alertPoint {
	points := make([]alertPoint, 0, len(alerts)+1)
	points = append(points, alertPoint{At: from, Total: 0})
	for i, alert := range alerts {
		points = append(points, alertPoint{At: alert.CreatedAt, Total: float64(i + 1)})
	}
	return points
}

func downsamplePoints(points []alertPoint, max int) []alertPoint {
	if max <= 1 || len(points) <= max {
		return points
	}

	result := make([]alertPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeAlertsCSV(path string, alerts []storage.AlertRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "created_at", "cycle_id", "match_id", "home", "away", "minute", "rule", "event_key"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		record := []string{
			strconv.FormatInt(alert.ID, 10),
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.CycleID,
			alert.MatchID,
			alert.Home,
			alert.Away,
			alert.Minute,
			alert.Rule,
			alert.EventKey,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeAlertsPNG(path string, points []alertPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	total := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.At
		total[i] = p.Total
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Alerts (cumulative)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Alerts",
				XValues: x,
				YValues: total,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
