package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"elspot2mqtt/internal/horizon"
)

// Show prints the look-ahead horizon as a table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	svc, closeStore, err := a.newService(ctx, false)
	if err != nil {
		return err
	}
	defer closeStore()

	payload, err := svc.Compute(ctx)
	if err != nil {
		return err
	}

	records := payload.Ahead
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no upcoming prices found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time\tMarket\tSpot\tGrid\tTotal\tExport\tAvg\tRel%\tLevel\tMinima")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Timestamp,
			formatPrice(rec.MarketPrice, 3),
			formatPrice(rec.SpotPrice, 3),
			formatPrice(rec.GridPrice, 3),
			formatPrice(rec.TotalPrice, 3),
			formatPrice(rec.ExportPrice, 3),
			formatPrice(rec.Average, 3),
			formatPrice(rec.RelativePct, 1),
			levelName(rec),
			markMinima(rec.Minima),
		)
	}

	writer.Flush()

	if payload.ChargeWindow != nil {
		fmt.Fprintf(os.Stdout, "\ncharge window %s-%s avg %s\n",
			payload.ChargeWindow.Start,
			payload.ChargeWindow.End,
			formatPrice(payload.ChargeWindow.AvgPrice, 3),
		)
	}
	return nil
}

func formatPrice(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func levelName(rec horizon.AheadRecord) string {
	if rec.Level == nil {
		return "-"
	}
	return *rec.Level
}

func markMinima(minima bool) string {
	if minima {
		return "*"
	}
	return ""
}
