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

	"elspot2mqtt/internal/horizon"
)

// Export renders the look-ahead horizon as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	svc, closeStore, err := a.newService(ctx, false)
	if err != nil {
		return err
	}
	defer closeStore()

	payload, err := svc.Compute(ctx)
	if err != nil {
		return err
	}
	if len(payload.Ahead) == 0 {
		a.Logger.Info().Msg("no upcoming prices to export")
		return nil
	}

	records := downsampleRecords(payload.Ahead, opts.MaxPoints)
	a.Logger.Info().Int("total", len(payload.Ahead)).Int("exported", len(records)).Msg("exporting horizon")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, records); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRecordsPNG(opts.PNGPath, records); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRecords(records []horizon.AheadRecord, max int) []horizon.AheadRecord {
	if max <= 0 || len(records) <= max {
		return records
	}

	result := make([]horizon.AheadRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path string, records []horizon.AheadRecord) error {
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

	header := []string{"timestamp", "market_price", "spot_price", "grid_price", "total_price", "export_price", "avg", "relpt", "level", "minima"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		record := []string{
			rec.Timestamp,
			formatFloat(rec.MarketPrice),
			formatFloat(rec.SpotPrice),
			formatFloat(rec.GridPrice),
			formatFloat(rec.TotalPrice),
			formatFloat(rec.ExportPrice),
			formatFloat(rec.Average),
			formatFloat(rec.RelativePct),
			levelName(rec),
			strconv.FormatBool(rec.Minima),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeRecordsPNG(path string, records []horizon.AheadRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	spot := make([]float64, len(records))
	total := make([]float64, len(records))
	export := make([]float64, len(records))

	for i, rec := range records {
		x[i] = rec.At
		spot[i] = rec.SpotPrice
		total[i] = rec.TotalPrice
		export[i] = rec.ExportPrice
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (SEK/kWh)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Spot",
				XValues: x,
				YValues: spot,
			},
			chart.TimeSeries{
				Name:    "Total",
				XValues: x,
				YValues: total,
			},
			chart.TimeSeries{
				Name:    "Export",
				XValues: x,
				YValues: export,
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

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
