package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/okorie22/Okorie-AI-sub005/internal/ratestore"
	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

// Export renders one rate series as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Protocol == "" {
		return errors.New("--protocol is required")
	}

	rateType := ratestore.RateType(opts.RateType)
	switch rateType {
	case ratestore.RateStaking, ratestore.RateLending, ratestore.RateBorrowing:
	default:
		return fmt.Errorf("unknown rate type %q", opts.RateType)
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	observations, err := storage.NewRateStore(db).ListBetween(ctx, opts.Protocol, string(rateType), from, to)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		a.Logger.Info().Msg("no observations found for export window")
		return nil
	}

	downsampled := downsampleObservations(observations, opts.MaxPoints)
	a.Logger.Info().Int("total", len(observations)).Int("exported", len(downsampled)).Msg("exporting observations")

	if opts.CSVPath != "" {
		if err := writeObservationsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeObservationsPNG(opts.PNGPath, opts.Protocol, string(rateType), downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleObservations(observations []storage.RateObservation, max int) []storage.RateObservation {
	if max <= 0 || len(observations) <= max {
		return observations
	}

	result := make([]storage.RateObservation, 0, max)
	step := float64(len(observations)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(observations) {
			idx = len(observations) - 1
		}
		result = append(result, observations[idx])
	}
	return result
}

func writeObservationsCSV(path string, observations []storage.RateObservation) error {
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

	header := []string{"captured_at", "protocol", "rate_type", "rate", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, obs := range observations {
		record := []string{
			obs.CapturedAt.Format(time.RFC3339),
			obs.Protocol,
			obs.RateType,
			obs.Rate.String(),
			obs.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeObservationsPNG(path, protocol, rateType string, observations []storage.RateObservation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(observations))
	rates := make([]float64, len(observations))
	for i, obs := range observations {
		x[i] = obs.CapturedAt
		rates[i] = obs.Rate.InexactFloat64()
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate (fraction APY)",
			ValueFormatter: rateFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    protocol + " " + rateType,
				XValues: x,
				YValues: rates,
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
